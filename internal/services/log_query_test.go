package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"neverlost/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLogQueryService_ParseRecentQuery(t *testing.T) {
	s := NewLogQueryService(nil, 16)

	t.Run("Defaults", func(t *testing.T) {
		q := s.ParseRecentQuery("", "", "")
		assert.Nil(t, q.Code)
		assert.Equal(t, 50, q.Limit)
		assert.Equal(t, 0, q.Offset)
	})

	t.Run("Clamped", func(t *testing.T) {
		q := s.ParseRecentQuery("", "1000", "-5")
		assert.Equal(t, 200, q.Limit)
		assert.Equal(t, 0, q.Offset)

		q = s.ParseRecentQuery("", "0", "2000000")
		assert.Equal(t, 1, q.Limit)
		assert.Equal(t, 1_000_000, q.Offset)
	})

	t.Run("Garbage Falls Back", func(t *testing.T) {
		q := s.ParseRecentQuery("", "lots", "some")
		assert.Equal(t, 50, q.Limit)
		assert.Equal(t, 0, q.Offset)
	})

	t.Run("Code Normalized Like Ingestion", func(t *testing.T) {
		q := s.ParseRecentQuery("  "+strings.Repeat("z", 40)+" ", "", "")
		assert.Equal(t, strings.Repeat("z", 16), *q.Code)

		q = s.ParseRecentQuery("   ", "", "")
		assert.Nil(t, q.Code)
	})
}

func TestLogQueryService_Disabled(t *testing.T) {
	s := NewLogQueryService(nil, 128)
	assert.False(t, s.Enabled())

	_, err := s.Recent(context.Background(), RecentQuery{Limit: 10})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
	_, err = s.Count(context.Background(), "x")
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
}

func TestLogQueryService_Queries(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupTestRepo(t)
	s := NewLogQueryService(repo, 128)

	t.Run("Empty Store", func(t *testing.T) {
		rows, err := s.Recent(ctx, RecentQuery{Limit: 50})
		assert.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)

		n, err := s.Count(ctx, "nothing")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	audit := NewAuditService(config.Config{}, repo, nil, testLogger())
	for _, code := range []string{"x", "y", "x"} {
		audit.Record(AccessEvent{At: time.Now(), Method: "GET", URL: "u", Code: code})
	}
	audit.Stop()

	t.Run("Filter And Order", func(t *testing.T) {
		code := "x"
		rows, err := s.Recent(ctx, RecentQuery{Code: &code, Limit: 50})
		assert.NoError(t, err)
		assert.Len(t, rows, 2)
		assert.Greater(t, rows[0].ID, rows[1].ID)

		n, err := s.Count(ctx, "x")
		assert.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}
