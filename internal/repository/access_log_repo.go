package repository

import (
	"context"
	"fmt"
	"sync"

	"neverlost/internal/config"
	"neverlost/internal/models"

	"gorm.io/gorm"
)

type AccessLogRepository struct {
	db   *gorm.DB
	mode string

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewAccessLogRepository(db *gorm.DB, schemaMode string) *AccessLogRepository {
	if schemaMode != config.SchemaModeRecreate {
		schemaMode = config.SchemaModeHeal
	}
	return &AccessLogRepository{db: db, mode: schemaMode}
}

// EnsureSchema makes sure access_logs exists with every expected column.
// In heal mode a complete table is left alone and an incomplete one is
// dropped and recreated; in recreate mode the table is always rebuilt.
func (r *AccessLogRepository) EnsureSchema(ctx context.Context) error {
	m := r.db.WithContext(ctx).Migrator()

	rebuild := r.mode == config.SchemaModeRecreate
	if !rebuild && m.HasTable(&models.AccessLog{}) {
		for _, col := range models.AccessLogColumns {
			if !m.HasColumn(&models.AccessLog{}, col) {
				rebuild = true
				break
			}
		}
		if !rebuild {
			return nil
		}
	}

	if err := m.DropTable(&models.AccessLog{}); err != nil {
		return fmt.Errorf("failed to drop access_logs: %w", err)
	}
	if err := m.CreateTable(&models.AccessLog{}); err != nil {
		return fmt.Errorf("failed to create access_logs: %w", err)
	}
	return nil
}

// Ready runs EnsureSchema once per process. A failed attempt is retried on
// the next call.
func (r *AccessLogRepository) Ready(ctx context.Context) error {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()

	if r.schemaReady {
		return nil
	}
	if err := r.EnsureSchema(ctx); err != nil {
		return err
	}
	r.schemaReady = true
	return nil
}

// InsertBatch writes rows in a single transaction and returns how many were stored.
func (r *AccessLogRepository) InsertBatch(ctx context.Context, rows []models.AccessLog) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.CreateInBatches(&rows, len(rows))
		if result.Error != nil {
			return result.Error
		}
		inserted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert access logs: %w", err)
	}
	return inserted, nil
}

// Recent returns records newest first. A nil code matches every record.
func (r *AccessLogRepository) Recent(ctx context.Context, code *string, limit, offset int) ([]models.AccessLog, error) {
	var rows []models.AccessLog
	query := r.db.WithContext(ctx).Model(&models.AccessLog{})
	if code != nil {
		query = query.Where("code = ?", *code)
	}
	err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query access logs: %w", err)
	}
	return rows, nil
}

func (r *AccessLogRepository) Count(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AccessLog{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count access logs: %w", err)
	}
	return count, nil
}
