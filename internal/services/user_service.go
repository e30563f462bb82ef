package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/database"
	"github.com/vadimpetrov/diacare-bot/internal/dosing"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*database.User, error) {
	user := &database.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		Plan:       database.PlanFree,
	}

	result := s.db.WithContext(ctx).FirstOrCreate(user, database.User{TelegramID: telegramID})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to register user: %w", result.Error)
	}

	return user, nil
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *UserService) SetTimezone(ctx context.Context, userID uint, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return apperrors.NewValidationError("unknown timezone")
	}
	if err := s.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", userID).Update("time_zone", tz).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

func (s *UserService) SetSOSContact(ctx context.Context, userID uint, contact string) error {
	if err := s.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", userID).Update("sos_contact", contact).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

// GetProfile returns nil without error when the user has not set one up.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*database.Profile, error) {
	var profile database.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return &profile, nil
}

// SaveProfile upserts the linear dosing model for a user.
func (s *UserService) SaveProfile(ctx context.Context, userID uint, p dosing.Profile, lowThreshold, highThreshold float64) error {
	if !p.Configured() {
		return apperrors.NewValidationError("profile coefficients must be positive")
	}
	if lowThreshold < 0 || highThreshold < 0 {
		return apperrors.NewValidationError("thresholds must not be negative")
	}
	if lowThreshold > 0 && highThreshold > 0 && lowThreshold >= highThreshold {
		return apperrors.NewValidationError("low threshold must be below high threshold")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing database.Profile
		err := tx.Where("user_id = ?", userID).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewDatabaseError(err)
		}

		existing.UserID = userID
		existing.ICR = p.ICR
		existing.CF = p.CF
		existing.TargetBG = p.TargetBG
		existing.LowThreshold = lowThreshold
		existing.HighThreshold = highThreshold

		if err := tx.Save(&existing).Error; err != nil {
			return apperrors.NewDatabaseError(err)
		}
		return nil
	})
}

// UserLocationByID resolves a user's timezone by primary key. Lookup
// failures fall back to UTC so timers still fire.
func (s *UserService) UserLocationByID(ctx context.Context, userID uint) *time.Location {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return time.UTC
	}
	return UserLocation(&user)
}

// DosingProfile converts a stored profile row into calculator input.
// A nil row yields an unconfigured profile.
func DosingProfile(p *database.Profile) dosing.Profile {
	if p == nil {
		return dosing.Profile{}
	}
	return dosing.Profile{ICR: p.ICR, CF: p.CF, TargetBG: p.TargetBG}
}

// UserLocation resolves the user's timezone, defaulting to UTC.
func UserLocation(u *database.User) *time.Location {
	if u == nil || u.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
