// Package marker parses marker paths and maps file extensions to resource
// categories and content types. Everything here is pure and safe for
// concurrent use; the lookup tables are built once and never mutated.
package marker

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

type Category string

const (
	CategoryImage        Category = "image"
	CategoryFont         Category = "font"
	CategoryArchive      Category = "archive"
	CategoryDocument     Category = "document"
	CategoryScript       Category = "script"
	CategoryStyle        Category = "style"
	CategoryData         Category = "data"
	CategoryUnrecognized Category = "unrecognized"
)

// Proxied reports whether requests in this category are answered from an
// upstream origin.
func (c Category) Proxied() bool {
	switch c {
	case CategoryImage, CategoryFont, CategoryArchive, CategoryDocument:
		return true
	}
	return false
}

// AlwaysEmpty reports whether the category is always answered with an
// empty 200 body.
func (c Category) AlwaysEmpty() bool {
	switch c {
	case CategoryScript, CategoryStyle, CategoryData:
		return true
	}
	return false
}

type extInfo struct {
	category    Category
	contentType string
}

var extensions = map[string]extInfo{
	"png":  {CategoryImage, "image/png"},
	"jpg":  {CategoryImage, "image/jpeg"},
	"jpeg": {CategoryImage, "image/jpeg"},
	"webp": {CategoryImage, "image/webp"},
	"gif":  {CategoryImage, "image/gif"},
	"svg":  {CategoryImage, "image/svg+xml"},
	"avif": {CategoryImage, "image/avif"},
	"ico":  {CategoryImage, "image/x-icon"},

	"woff":  {CategoryFont, "font/woff"},
	"woff2": {CategoryFont, "font/woff2"},
	"ttf":   {CategoryFont, "font/ttf"},
	"otf":   {CategoryFont, "font/otf"},
	"eot":   {CategoryFont, "application/vnd.ms-fontobject"},

	"zip":    {CategoryArchive, "application/zip"},
	"7z":     {CategoryArchive, "application/x-7z-compressed"},
	"gz":     {CategoryArchive, "application/gzip"},
	"tar":    {CategoryArchive, "application/x-tar"},
	"tar.gz": {CategoryArchive, "application/gzip"},

	"doc":  {CategoryDocument, "application/msword"},
	"docx": {CategoryDocument, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"xls":  {CategoryDocument, "application/vnd.ms-excel"},
	"xlsx": {CategoryDocument, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	"ppt":  {CategoryDocument, "application/vnd.ms-powerpoint"},
	"pptx": {CategoryDocument, "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	"hwp":  {CategoryDocument, "application/x-hwp"},
	"hwpx": {CategoryDocument, "application/vnd.hancom.hwpx"},
	"pdf":  {CategoryDocument, "application/pdf"},
	"odt":  {CategoryDocument, "application/vnd.oasis.opendocument.text"},
	"ods":  {CategoryDocument, "application/vnd.oasis.opendocument.spreadsheet"},
	"odp":  {CategoryDocument, "application/vnd.oasis.opendocument.presentation"},

	"js":  {CategoryScript, "application/javascript; charset=utf-8"},
	"mjs": {CategoryScript, "application/javascript; charset=utf-8"},

	"css": {CategoryStyle, "text/css; charset=utf-8"},

	"json": {CategoryData, "application/json; charset=utf-8"},
	"txt":  {CategoryData, "text/plain; charset=utf-8"},
	"xml":  {CategoryData, "application/xml; charset=utf-8"},
	"yml":  {CategoryData, "text/yaml; charset=utf-8"},
}

// DefaultContentType is returned by ContentType for extensions outside the table.
const DefaultContentType = "application/octet-stream"

// The code capture is greedy, so the extension starts after the last dot
// that still leaves a well-formed extension.
var pathPattern = regexp.MustCompile(`(?i)^/marker/([^/]+)\.([a-z0-9.]+)$`)

// Parse extracts the tracking code and lowercased extension from an escaped
// request path. The code is percent-decoded; an undecodable code is kept as
// is. ok is false when the path is not a marker path or the extension is
// unknown.
func Parse(escapedPath string) (code, ext string, ok bool) {
	m := pathPattern.FindStringSubmatch(escapedPath)
	if m == nil {
		return "", "", false
	}

	ext = strings.ToLower(m[2])
	if _, known := extensions[ext]; !known {
		return "", "", false
	}

	code = m[1]
	if decoded, err := url.PathUnescape(code); err == nil {
		code = decoded
	}
	return code, ext, true
}

// Classify returns the category of a lowercased extension.
func Classify(ext string) Category {
	if info, ok := extensions[ext]; ok {
		return info.category
	}
	return CategoryUnrecognized
}

// ContentType returns the fixed MIME type served for an extension.
func ContentType(ext string) string {
	if info, ok := extensions[ext]; ok {
		return info.contentType
	}
	return DefaultContentType
}

// Known reports whether ext belongs to any category.
func Known(ext string) bool {
	_, ok := extensions[ext]
	return ok
}

// Extensions returns the extensions of a category in no particular order.
func Extensions(c Category) []string {
	var out []string
	for ext, info := range extensions {
		if info.category == c {
			out = append(out, ext)
		}
	}
	return out
}

// NormalizeCode trims raw and caps it at maxLen runes. ok is false when
// nothing is left after trimming.
func NormalizeCode(raw string, maxLen int) (string, bool) {
	v := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
	if v == "" {
		return "", false
	}
	if maxLen > 0 {
		runes := []rune(v)
		if len(runes) > maxLen {
			v = string(runes[:maxLen])
		}
	}
	return v, true
}
