// Package survey implements surveys and the one-response-per-user
// guard. The duplicate check is a conditional insert inside a
// transaction, not a client-side pre-check, so concurrent submissions
// from the same user cannot both land.
package survey

import (
	"context"
	"errors"
	"fmt"

	"github.com/goldenage/center-api/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the referenced survey does not exist.
	ErrNotFound = errors.New("survey not found")

	// ErrAlreadyResponded is returned when the user has already
	// submitted a response to the survey.
	ErrAlreadyResponded = errors.New("user already responded to this survey")

	// ErrSurveyClosed is returned when the survey no longer accepts
	// responses.
	ErrSurveyClosed = errors.New("survey is closed")
)

type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log.With().Str("component", "survey").Logger()}
}

// Submit records the user's answers. Exactly one response per
// (survey, user) pair can ever commit: the check runs in the same
// transaction as the insert, and the composite unique index backs it up
// should the database ever see two inserts anyway.
func (s *Service) Submit(ctx context.Context, surveyID, userID uint, answers []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sv models.Survey
		if err := tx.First(&sv, surveyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load survey: %w", err)
		}
		if !sv.Open {
			return ErrSurveyClosed
		}

		var existing int64
		if err := tx.Model(&models.SurveyResponse{}).
			Where("survey_id = ? AND user_id = ?", surveyID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing response: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyResponded
		}

		response := models.SurveyResponse{
			SurveyID: surveyID,
			UserID:   userID,
			Answers:  answers,
		}
		if err := tx.Create(&response).Error; err != nil {
			return fmt.Errorf("create response: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("survey_id", surveyID).Uint("user_id", userID).Msg("response recorded")
	return nil
}

// Responses lists a survey's responses with users preloaded.
func (s *Service) Responses(ctx context.Context, surveyID uint) ([]models.SurveyResponse, error) {
	var sv models.Survey
	if err := s.db.WithContext(ctx).First(&sv, surveyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load survey: %w", err)
	}

	var responses []models.SurveyResponse
	if err := s.db.WithContext(ctx).Preload("User").
		Where("survey_id = ?", surveyID).
		Order("created_at asc").
		Find(&responses).Error; err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return responses, nil
}
