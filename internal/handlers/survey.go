package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/goldenage/center-api/internal/auth"
	"github.com/goldenage/center-api/internal/models"
	"github.com/goldenage/center-api/internal/survey"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type SurveyHandler struct {
	db          *gorm.DB
	svc         *survey.Service
	authHandler *auth.AuthHandler
	log         zerolog.Logger
}

func NewSurveyHandler(db *gorm.DB, svc *survey.Service, authHandler *auth.AuthHandler, log zerolog.Logger) *SurveyHandler {
	return &SurveyHandler{
		db:          db,
		svc:         svc,
		authHandler: authHandler,
		log:         log.With().Str("component", "handlers").Logger(),
	}
}

type CreateSurveyRequest struct {
	auth.AuthInput
	Body struct {
		Title       string   `json:"title" required:"true"`
		Description string   `json:"description"`
		Questions   []string `json:"questions" required:"true"`
		Open        bool     `json:"open"`
	}
}

type SurveyResponseBody struct {
	Body models.Survey
}

func (h *SurveyHandler) HandleCreate(ctx context.Context, input *CreateSurveyRequest) (*SurveyResponseBody, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Body.Title) == "" {
		return nil, huma.Error422UnprocessableEntity("Survey title is required")
	}
	if len(input.Body.Questions) == 0 {
		return nil, huma.Error422UnprocessableEntity("Survey needs at least one question")
	}

	sv := models.Survey{
		Title:       strings.TrimSpace(input.Body.Title),
		Description: input.Body.Description,
		Questions:   input.Body.Questions,
		Open:        input.Body.Open,
	}
	if err := h.db.WithContext(ctx).Create(&sv).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to create survey")
	}
	return &SurveyResponseBody{Body: sv}, nil
}

type ListSurveysRequest struct {
	auth.AuthInput
	All bool `query:"all" doc:"Include closed surveys (staff only)"`
}

type ListSurveysResponse struct {
	Body struct {
		Surveys []models.Survey `json:"surveys"`
	}
}

// HandleList lists surveys currently accepting responses. Staff may
// pass all=true to enumerate closed surveys as well.
func (h *SurveyHandler) HandleList(ctx context.Context, input *ListSurveysRequest) (*ListSurveysResponse, error) {
	q := h.db.WithContext(ctx).Order("created_at desc")
	if input.All {
		if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
			return nil, err
		}
	} else {
		q = q.Where("open = ?", true)
	}

	var surveys []models.Survey
	if err := q.Find(&surveys).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to list surveys")
	}
	res := &ListSurveysResponse{}
	res.Body.Surveys = surveys
	return res, nil
}

type GetSurveyRequest struct {
	ID uint `path:"id"`
}

func (h *SurveyHandler) HandleGet(ctx context.Context, input *GetSurveyRequest) (*SurveyResponseBody, error) {
	var sv models.Survey
	if err := h.db.WithContext(ctx).First(&sv, input.ID).Error; err != nil {
		return nil, huma.Error404NotFound("Survey not found")
	}
	return &SurveyResponseBody{Body: sv}, nil
}

type UpdateSurveyRequest struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body struct {
		Title       *string  `json:"title,omitempty"`
		Description *string  `json:"description,omitempty"`
		Questions   []string `json:"questions,omitempty"`
		Open        *bool    `json:"open,omitempty"`
	}
}

// HandleUpdate applies a partial update: fields absent from the body
// keep their stored values.
func (h *SurveyHandler) HandleUpdate(ctx context.Context, input *UpdateSurveyRequest) (*SurveyResponseBody, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	var sv models.Survey
	if err := h.db.WithContext(ctx).First(&sv, input.ID).Error; err != nil {
		return nil, huma.Error404NotFound("Survey not found")
	}

	if input.Body.Title != nil {
		if strings.TrimSpace(*input.Body.Title) == "" {
			return nil, huma.Error422UnprocessableEntity("Survey title cannot be empty")
		}
		sv.Title = strings.TrimSpace(*input.Body.Title)
	}
	if input.Body.Description != nil {
		sv.Description = *input.Body.Description
	}
	if len(input.Body.Questions) > 0 {
		sv.Questions = input.Body.Questions
	}
	if input.Body.Open != nil {
		sv.Open = *input.Body.Open
	}

	if err := h.db.WithContext(ctx).Save(&sv).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to update survey")
	}
	return &SurveyResponseBody{Body: sv}, nil
}

type DeleteSurveyRequest struct {
	auth.AuthInput
	ID uint `path:"id"`
}

// HandleDelete removes a survey and its responses in one transaction.
func (h *SurveyHandler) HandleDelete(ctx context.Context, input *DeleteSurveyRequest) (*struct{}, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sv models.Survey
		if err := tx.First(&sv, input.ID).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("survey_id = ?", input.ID).Delete(&models.SurveyResponse{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sv).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Survey not found")
		}
		return nil, huma.Error500InternalServerError("Failed to delete survey")
	}
	return nil, nil
}

type SubmitResponseRequest struct {
	auth.AuthInput
	SurveyID uint `path:"id"`
	Body     struct {
		Answers []string `json:"answers" required:"true"`
	}
}

type SubmitResponseResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// HandleSubmit records the caller's response. One response per member
// per survey; a second attempt gets a conflict, never a second row.
func (h *SurveyHandler) HandleSubmit(ctx context.Context, input *SubmitResponseRequest) (*SubmitResponseResponse, error) {
	userID, err := h.authHandler.Authorize(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}

	if err := h.svc.Submit(ctx, input.SurveyID, userID, input.Body.Answers); err != nil {
		switch {
		case errors.Is(err, survey.ErrNotFound):
			return nil, huma.Error404NotFound("Survey not found")
		case errors.Is(err, survey.ErrAlreadyResponded):
			return nil, huma.Error409Conflict("You already responded to this survey")
		case errors.Is(err, survey.ErrSurveyClosed):
			return nil, huma.Error409Conflict("Survey is closed")
		default:
			return nil, huma.Error500InternalServerError("Failed to submit response")
		}
	}

	res := &SubmitResponseResponse{}
	res.Body.Message = "Response recorded"
	return res, nil
}

type ListResponsesRequest struct {
	auth.AuthInput
	SurveyID uint `path:"id"`
}

type ResponseEntry struct {
	UserID    uint     `json:"user_id"`
	Phone     string   `json:"phone"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Answers   []string `json:"answers"`
}

type ListResponsesResponse struct {
	Body struct {
		Responses []ResponseEntry `json:"responses"`
	}
}

func (h *SurveyHandler) HandleResponses(ctx context.Context, input *ListResponsesRequest) (*ListResponsesResponse, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	responses, err := h.svc.Responses(ctx, input.SurveyID)
	if err != nil {
		if errors.Is(err, survey.ErrNotFound) {
			return nil, huma.Error404NotFound("Survey not found")
		}
		return nil, huma.Error500InternalServerError("Failed to list responses")
	}

	res := &ListResponsesResponse{}
	for _, r := range responses {
		res.Body.Responses = append(res.Body.Responses, ResponseEntry{
			UserID:    r.UserID,
			Phone:     r.User.Phone,
			FirstName: r.User.FirstName,
			LastName:  r.User.LastName,
			Answers:   r.Answers,
		})
	}
	return res, nil
}
