package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/diary"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
	"gorm.io/gorm"
)

type EntryService struct {
	db *gorm.DB
}

func NewEntryService(db *gorm.DB) *EntryService {
	return &EntryService{db: db}
}

// CommitPending converts an accumulated pending entry into a persisted
// row. The write is a single transaction: it either fully commits or the
// pending entry stays untouched for a retry.
func (s *EntryService) CommitPending(ctx context.Context, user *database.User, p *diary.PendingEntry) (*database.Entry, error) {
	entry := &database.Entry{
		UserID:      user.ID,
		TelegramID:  user.TelegramID,
		EventTime:   p.EventTime,
		SugarBefore: p.SugarBefore,
		CarbsG:      p.CarbsG,
		XE:          p.XE,
		Dose:        p.Dose,
		PhotoPath:   p.PhotoPath,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return entry, nil
}

// GetEntry looks up an entry, verifying ownership.
func (s *EntryService) GetEntry(ctx context.Context, userID uint, entryID uint) (*database.Entry, error) {
	var entry database.Entry
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("entry")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return &entry, nil
}

// UpdateEntryField overwrites one measurement field of a persisted
// entry. The row is re-read inside the transaction; a vanished row is a
// specific not-found error so the caller can drop its stale reference.
func (s *EntryService) UpdateEntryField(ctx context.Context, userID uint, entryID uint, field smartinput.Field, value float64) error {
	if value < 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s must not be negative", field))
	}

	column, ok := entryColumn(field)
	if !ok {
		return apperrors.NewValidationError("unknown entry field")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry database.Entry
		err := tx.Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("entry")
		}
		if err != nil {
			return apperrors.NewDatabaseError(err)
		}

		updates := map[string]interface{}{column: value}
		if field == smartinput.FieldXE {
			updates["carbs_g"] = value * diary.GramsPerXE
		}

		if err := tx.Model(&entry).Updates(updates).Error; err != nil {
			return apperrors.NewDatabaseError(err)
		}
		return nil
	})
}

func entryColumn(field smartinput.Field) (string, bool) {
	switch field {
	case smartinput.FieldSugar:
		return "sugar_before", true
	case smartinput.FieldXE:
		return "xe", true
	case smartinput.FieldCarbs:
		return "carbs_g", true
	case smartinput.FieldDose:
		return "dose", true
	}
	return "", false
}

// DeleteEntry removes an entry owned by the user.
func (s *EntryService) DeleteEntry(ctx context.Context, userID uint, entryID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", entryID, userID).Delete(&database.Entry{})
	if result.Error != nil {
		return apperrors.NewDatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("entry")
	}
	return nil
}

// ListRecent returns the user's latest entries, newest first.
func (s *EntryService) ListRecent(ctx context.Context, userID uint, limit int) ([]database.Entry, error) {
	var entries []database.Entry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("event_time DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return entries, nil
}
