// Package registration implements capacity-safe activity registration.
// All mutations of an activity's registrant set go through this package;
// the capacity invariant (registrants <= capacity when capacity is set)
// holds at every committed state because the check and the write happen
// inside one database transaction.
package registration

import (
	"context"
	"errors"
	"fmt"

	"github.com/goldenage/center-api/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the referenced activity does not exist.
var ErrNotFound = errors.New("activity not found")

// ErrCapacityExceeded is returned when the activity is full at commit
// time. Callers must not retry automatically.
var ErrCapacityExceeded = errors.New("activity is full")

type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log.With().Str("component", "registration").Logger()}
}

// Register adds the user to the activity's registrant set.
//
// The whole read-check-write runs in a single transaction. SQLite takes
// the write lock at BEGIN (see database.DSN), so two racing calls never
// observe the same pre-state: the capacity count each call sees is the
// committed state the previous writer left behind. The check must live
// here, inside the transaction, not in the caller.
//
// Registering an already-registered user is a successful no-op, so a
// double-click or a retried request never produces a duplicate entry.
func (s *Service) Register(ctx context.Context, activityID, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var activity models.Activity
		if err := tx.First(&activity, activityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load activity: %w", err)
		}

		var existing int64
		if err := tx.Model(&models.Registration{}).
			Where("activity_id = ? AND user_id = ?", activityID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing registration: %w", err)
		}
		if existing > 0 {
			return nil
		}

		if !activity.Unlimited() {
			var count int64
			if err := tx.Model(&models.Registration{}).
				Where("activity_id = ?", activityID).
				Count(&count).Error; err != nil {
				return fmt.Errorf("count registrants: %w", err)
			}
			if count >= int64(activity.Capacity) {
				return ErrCapacityExceeded
			}
		}

		if err := tx.Create(&models.Registration{UserID: userID, ActivityID: activityID}).Error; err != nil {
			return fmt.Errorf("create registration: %w", err)
		}

		event := models.RegistrationEvent{
			UserID:     userID,
			ActivityID: activityID,
			Action:     models.ActionRegister,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("record registration event: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("activity_id", activityID).Uint("user_id", userID).Msg("registered")
	return nil
}

// Unregister removes the user from the activity's registrant set.
// Removing an absent user is a successful no-op; removal cannot violate
// the capacity invariant, but the delete and its audit event still
// commit atomically so concurrent staff and member removals never lose
// an update.
func (s *Service) Unregister(ctx context.Context, activityID, userID uint) error {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Hard delete: a soft-deleted row would keep holding the
		// (user, activity) unique index and block re-registration.
		res := tx.Unscoped().
			Where("activity_id = ? AND user_id = ?", activityID, userID).
			Delete(&models.Registration{})
		if res.Error != nil {
			return fmt.Errorf("delete registration: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true

		event := models.RegistrationEvent{
			UserID:     userID,
			ActivityID: activityID,
			Action:     models.ActionUnregister,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("record unregistration event: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	// Log only after the transaction commits; a rolled-back delete must
	// not report success.
	if removed {
		s.log.Info().Uint("activity_id", activityID).Uint("user_id", userID).Msg("unregistered")
	}
	return nil
}

// Registrants lists the activity's registrations with users preloaded.
func (s *Service) Registrants(ctx context.Context, activityID uint) ([]models.Registration, error) {
	var activity models.Activity
	if err := s.db.WithContext(ctx).First(&activity, activityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load activity: %w", err)
	}

	var regs []models.Registration
	if err := s.db.WithContext(ctx).Preload("User").
		Where("activity_id = ?", activityID).
		Order("created_at asc").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	return regs, nil
}

// Count returns the number of committed registrations for the activity.
func (s *Service) Count(ctx context.Context, activityID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Registration{}).
		Where("activity_id = ?", activityID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count registrants: %w", err)
	}
	return count, nil
}

// UserActivities returns the activities the user is registered for,
// derived from the authoritative registrations table. There is no
// stored per-user activity list to drift out of sync.
func (s *Service) UserActivities(ctx context.Context, userID uint) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.db.WithContext(ctx).
		Joins("JOIN registrations ON registrations.activity_id = activities.id AND registrations.deleted_at IS NULL").
		Where("registrations.user_id = ?", userID).
		Order("activities.date asc").
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("list user activities: %w", err)
	}
	return activities, nil
}
