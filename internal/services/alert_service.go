package services

import (
	"context"
	"errors"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"gorm.io/gorm"
)

// AlertService persists glucose alert episodes.
type AlertService struct {
	db *gorm.DB
}

func NewAlertService(db *gorm.DB) *AlertService {
	return &AlertService{db: db}
}

// Unresolved returns the user's open episode, nil if there is none.
func (s *AlertService) Unresolved(ctx context.Context, userID uint) (*database.AlertEpisode, error) {
	var episode database.AlertEpisode
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND resolved = ?", userID, false).
		Order("id DESC").
		First(&episode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return &episode, nil
}

func (s *AlertService) Create(ctx context.Context, ep *database.AlertEpisode) error {
	if err := s.db.WithContext(ctx).Create(ep).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

// ResolveAll closes every open episode of the user.
func (s *AlertService) ResolveAll(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).
		Model(&database.AlertEpisode{}).
		Where("user_id = ? AND resolved = ?", userID, false).
		Update("resolved", true).Error
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

// ByID returns the episode row, nil if it no longer exists.
func (s *AlertService) ByID(ctx context.Context, episodeID uint) (*database.AlertEpisode, error) {
	var episode database.AlertEpisode
	err := s.db.WithContext(ctx).First(&episode, episodeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return &episode, nil
}
