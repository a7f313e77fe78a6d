package services

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"net/url"
	"strings"

	"neverlost/internal/marker"

	"github.com/skip2/go-qrcode"
)

var (
	ErrPublicBaseURLNotSet = errors.New("public base url not configured")
	ErrUnknownExtension    = errors.New("unknown marker extension")
)

const (
	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024
)

type QROptions struct {
	Content string
	Size    int
	FgColor string // Hex code e.g. "#000000"
	BgColor string // Hex code e.g. "#FFFFFF"
}

// QRService renders QR codes pointing at marker URLs on the public host.
type QRService struct {
	baseURL string
}

func NewQRService(publicBaseURL string) *QRService {
	return &QRService{baseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")}
}

// MarkerURL builds the public URL for a code and extension. The code is
// path-escaped so it round-trips through marker.Parse.
func (s *QRService) MarkerURL(code, ext string) (string, error) {
	if s.baseURL == "" {
		return "", ErrPublicBaseURLNotSet
	}
	ext = strings.ToLower(ext)
	if !marker.Known(ext) {
		return "", ErrUnknownExtension
	}
	return fmt.Sprintf("%s/marker/%s.%s", s.baseURL, url.PathEscape(code), ext), nil
}

func (s *QRService) GenerateQRCode(opts QROptions) ([]byte, error) {
	qr, err := qrcode.New(opts.Content, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	qr.ForegroundColor = s.parseHexColor(opts.FgColor, color.Black)
	qr.BackgroundColor = s.parseHexColor(opts.BgColor, color.White)

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(opts.Size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *QRService) GenerateQRCodeSVG(opts QROptions) (string, error) {
	qr, err := qrcode.New(opts.Content, qrcode.Medium)
	if err != nil {
		return "", err
	}

	fg := opts.FgColor
	if !validHexColor(fg) {
		fg = "#000000"
	}
	bg := opts.BgColor
	if !validHexColor(bg) {
		bg = "#FFFFFF"
	}

	qr.DisableBorder = true
	bitmap := qr.Bitmap()
	size := len(bitmap)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size))
	sb.WriteString(fmt.Sprintf(`<rect width="100%%" height="100%%" fill="%s"/>`, bg))
	sb.WriteString(fmt.Sprintf(`<path fill="%s" d="`, fg))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if bitmap[y][x] {
				sb.WriteString(fmt.Sprintf("M%d %dh1v1h-1z ", x, y))
			}
		}
	}
	sb.WriteString(`"/>`)
	sb.WriteString("</svg>")
	return sb.String(), nil
}

func validHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func (s *QRService) parseHexColor(hex string, defaultColor color.Color) color.Color {
	if !validHexColor(hex) {
		return defaultColor
	}

	hexToByte := func(c byte) byte {
		switch {
		case c >= '0' && c <= '9':
			return c - '0'
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10
		default:
			return c - 'A' + 10
		}
	}

	h := hex[1:]
	r := (hexToByte(h[0]) << 4) + hexToByte(h[1])
	g := (hexToByte(h[2]) << 4) + hexToByte(h[3])
	b := (hexToByte(h[4]) << 4) + hexToByte(h[5])

	return color.RGBA{R: r, G: g, B: b, A: 255}
}
