package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SourceFailure 每个数据源累计的失败次数与最近一次失败
type SourceFailure struct {
	Source       string    `gorm:"primaryKey;size:100" json:"source"`
	Count        int       `json:"count"`
	LastError    string    `gorm:"size:600" json:"lastError"`
	LastFailedAt time.Time `gorm:"index" json:"lastFailedAt"`
}

func recordFailure(tx *gorm.DB, source, msg string, at time.Time) error {
	row := SourceFailure{
		Source:       source,
		Count:        1,
		LastError:    truncateRunes(toValidUTF8(msg), 600),
		LastFailedAt: at,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":          gorm.Expr("source_failures.count + 1"),
			"last_error":     row.LastError,
			"last_failed_at": row.LastFailedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save failure of %s: %w", source, err)
	}
	return nil
}

// SourceFailures 以数据源名索引
func (h *History) SourceFailures(ctx context.Context) (map[string]SourceFailure, error) {
	var list []SourceFailure
	if err := h.DB.WithContext(ctx).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list source failures: %w", err)
	}
	out := make(map[string]SourceFailure, len(list))
	for _, f := range list {
		out[f.Source] = f
	}
	return out, nil
}
