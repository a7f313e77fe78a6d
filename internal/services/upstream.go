package services

import (
	"strings"

	"neverlost/internal/config"
	"neverlost/internal/marker"
)

// UpstreamResolver maps proxied categories to their configured origin.
type UpstreamResolver struct {
	origins map[marker.Category]string
}

func NewUpstreamResolver(cfg config.Config) *UpstreamResolver {
	origins := make(map[marker.Category]string)
	for category, raw := range map[marker.Category]string{
		marker.CategoryImage:    cfg.ImageURL,
		marker.CategoryFont:     cfg.FontURL,
		marker.CategoryArchive:  cfg.ArchiveURL,
		marker.CategoryDocument: cfg.DocumentURL,
	} {
		if v := strings.TrimSpace(raw); v != "" {
			origins[category] = v
		}
	}
	return &UpstreamResolver{origins: origins}
}

// Resolve returns the origin URL for a category. Categories that are not
// proxied, or proxied ones without a configured origin, report false.
func (r *UpstreamResolver) Resolve(category marker.Category) (string, bool) {
	origin, ok := r.origins[category]
	return origin, ok
}
