package services

import (
	"context"
	"errors"

	"neverlost/internal/marker"
	"neverlost/internal/models"
	"neverlost/internal/repository"
	"neverlost/pkg/utils"
)

var ErrStoreNotConfigured = errors.New("access log store not configured")

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 200
	MaxRecentOffset    = 1_000_000
)

// LogQueryService reads access logs back for operators. Codes are
// normalized exactly as they are on ingestion so a filter matches what was
// stored.
type LogQueryService struct {
	repo          *repository.AccessLogRepository
	codeMaxLength int
}

func NewLogQueryService(repo *repository.AccessLogRepository, codeMaxLength int) *LogQueryService {
	return &LogQueryService{repo: repo, codeMaxLength: codeMaxLength}
}

func (s *LogQueryService) Enabled() bool {
	return s.repo != nil
}

// RecentQuery holds already-clamped parameters and the normalized code.
type RecentQuery struct {
	Code   *string
	Limit  int
	Offset int
}

// ParseRecentQuery applies defaults and clamping to raw query parameters.
func (s *LogQueryService) ParseRecentQuery(rawCode, rawLimit, rawOffset string) RecentQuery {
	q := RecentQuery{
		Limit:  utils.ClampInt(rawLimit, 1, MaxRecentLimit, DefaultRecentLimit),
		Offset: utils.ClampInt(rawOffset, 0, MaxRecentOffset, 0),
	}
	if code, ok := s.NormalizeCode(rawCode); ok {
		q.Code = &code
	}
	return q
}

func (s *LogQueryService) NormalizeCode(raw string) (string, bool) {
	return marker.NormalizeCode(raw, s.codeMaxLength)
}

func (s *LogQueryService) Recent(ctx context.Context, q RecentQuery) ([]models.AccessLog, error) {
	if !s.Enabled() {
		return nil, ErrStoreNotConfigured
	}
	if err := s.repo.Ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.repo.Recent(ctx, q.Code, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.AccessLog{}
	}
	return rows, nil
}

func (s *LogQueryService) Count(ctx context.Context, code string) (int64, error) {
	if !s.Enabled() {
		return 0, ErrStoreNotConfigured
	}
	if err := s.repo.Ready(ctx); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, code)
}
