package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxHistoryLimit = 50

// HistoryStore 记录生成历史
type HistoryStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewHistoryStore(db *gorm.DB, logger *zap.Logger) *HistoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryStore{db: db, logger: logger.Named("history")}
}

// Record inserts rec. CreatedAt is filled by gorm when zero.
func (h *HistoryStore) Record(ctx context.Context, rec *GenerationRecord) error {
	if err := h.db.WithContext(ctx).Create(rec).Error; err != nil {
		h.logger.Error("Failed to record generation", zap.Int64("user_id", rec.UserID), zap.Error(err))
		return fmt.Errorf("record generation: %w", err)
	}
	h.logger.Debug("Generation recorded",
		zap.Int64("user_id", rec.UserID),
		zap.String("style_id", rec.StyleID),
		zap.Bool("success", rec.Success))
	return nil
}

// Recent returns the newest records of userID, newest first. limit is clamped to [1, 50].
func (h *HistoryStore) Recent(ctx context.Context, userID int64, limit int) ([]GenerationRecord, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	var records []GenerationRecord
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query history for user %d: %w", userID, err)
	}
	return records, nil
}

// CountByUser returns total and successful generations of userID.
func (h *HistoryStore) CountByUser(ctx context.Context, userID int64) (total, succeeded int64, err error) {
	q := h.db.WithContext(ctx).Model(&GenerationRecord{}).Where("user_id = ?", userID)
	if err = q.Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count history: %w", err)
	}
	err = h.db.WithContext(ctx).Model(&GenerationRecord{}).
		Where("user_id = ? AND success = ?", userID, true).
		Count(&succeeded).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count successful history: %w", err)
	}
	return total, succeeded, nil
}
