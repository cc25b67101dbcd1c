package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceStore 保存用户的语言偏好
type PreferenceStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPreferenceStore(db *gorm.DB, logger *zap.Logger) *PreferenceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceStore{db: db, logger: logger.Named("preferences")}
}

// GetLanguage 获取用户语言
// 如果用户没有设置过，则返回 gorm.ErrRecordNotFound
func (p *PreferenceStore) GetLanguage(ctx context.Context, userID int64) (string, error) {
	var pref UserPreference
	err := p.db.WithContext(ctx).First(&pref, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", gorm.ErrRecordNotFound
		}
		p.logger.Error("Failed to get user preference from DB", zap.Int64("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("get preference: %w", err)
	}
	return pref.Language, nil
}

// SetLanguage upserts the language of userID.
func (p *PreferenceStore) SetLanguage(ctx context.Context, userID int64, lang string) error {
	pref := UserPreference{UserID: userID, Language: lang}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"language", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		p.logger.Error("Failed to set user preference in DB", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("set preference: %w", err)
	}
	p.logger.Info("User language updated", zap.Int64("user_id", userID), zap.String("language", lang))
	return nil
}
