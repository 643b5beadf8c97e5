package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/goldenage/center-api/internal/auth"
	"github.com/goldenage/center-api/internal/models"
	"github.com/goldenage/center-api/internal/registration"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ActivityHandler struct {
	db          *gorm.DB
	svc         *registration.Service
	authHandler *auth.AuthHandler
	log         zerolog.Logger
}

func NewActivityHandler(db *gorm.DB, svc *registration.Service, authHandler *auth.AuthHandler, log zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		db:          db,
		svc:         svc,
		authHandler: authHandler,
		log:         log.With().Str("component", "handlers").Logger(),
	}
}

type ActivityFields struct {
	Name        string         `json:"name" doc:"Activity name" required:"true"`
	Description string         `json:"description"`
	Date        time.Time      `json:"date" doc:"Date of the activity"`
	StartTime   string         `json:"start_time" doc:"HH:MM"`
	EndTime     string         `json:"end_time" doc:"HH:MM"`
	Room        string         `json:"room"`
	Capacity    int            `json:"capacity" doc:"Maximum registrants, 0 for unlimited"`
	Recurring   bool           `json:"recurring"`
	Weekdays    []time.Weekday `json:"weekdays" doc:"Weekdays for recurring activities"`
	Tags        []string       `json:"tags"`
}

type CreateActivityRequest struct {
	auth.AuthInput
	Body ActivityFields
}

type ActivityResponse struct {
	Body models.Activity
}

func (h *ActivityHandler) HandleCreate(ctx context.Context, input *CreateActivityRequest) (*ActivityResponse, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Body.Name) == "" {
		return nil, huma.Error422UnprocessableEntity("Activity name is required")
	}
	if input.Body.Capacity < 0 {
		return nil, huma.Error422UnprocessableEntity("Capacity cannot be negative")
	}

	activity := models.Activity{
		Name:        strings.TrimSpace(input.Body.Name),
		Description: input.Body.Description,
		Date:        input.Body.Date,
		StartTime:   input.Body.StartTime,
		EndTime:     input.Body.EndTime,
		Room:        input.Body.Room,
		Capacity:    input.Body.Capacity,
		Recurring:   input.Body.Recurring,
		Weekdays:    input.Body.Weekdays,
		Tags:        input.Body.Tags,
	}
	if err := h.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to create activity")
	}

	return &ActivityResponse{Body: activity}, nil
}

type ListActivitiesRequest struct {
	Tag      string `query:"tag" doc:"Only activities carrying this tag"`
	Upcoming bool   `query:"upcoming" doc:"Only activities dated today or later"`
}

type ActivitySummary struct {
	models.Activity
	RegisteredCount int64 `json:"registered_count"`
}

type ListActivitiesResponse struct {
	Body struct {
		Activities []ActivitySummary `json:"activities"`
	}
}

func (h *ActivityHandler) HandleList(ctx context.Context, input *ListActivitiesRequest) (*ListActivitiesResponse, error) {
	q := h.db.WithContext(ctx).Model(&models.Activity{}).Order("date asc")
	if input.Upcoming {
		// Truncate in local time; Truncate on a Time rounds to UTC
		// midnight and would cut off part of today.
		now := time.Now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		q = q.Where("date >= ?", startOfDay)
	}

	var activities []models.Activity
	if err := q.Find(&activities).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to list activities")
	}

	res := &ListActivitiesResponse{}
	for _, a := range activities {
		if input.Tag != "" && !hasTag(a.Tags, input.Tag) {
			continue
		}
		count, err := h.svc.Count(ctx, a.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to count registrants")
		}
		res.Body.Activities = append(res.Body.Activities, ActivitySummary{Activity: a, RegisteredCount: count})
	}
	return res, nil
}

type GetActivityRequest struct {
	ID uint `path:"id"`
}

type GetActivityResponse struct {
	Body ActivitySummary
}

func (h *ActivityHandler) HandleGet(ctx context.Context, input *GetActivityRequest) (*GetActivityResponse, error) {
	var activity models.Activity
	if err := h.db.WithContext(ctx).First(&activity, input.ID).Error; err != nil {
		return nil, huma.Error404NotFound("Activity not found")
	}
	count, err := h.svc.Count(ctx, activity.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to count registrants")
	}
	return &GetActivityResponse{Body: ActivitySummary{Activity: activity, RegisteredCount: count}}, nil
}

type UpdateActivityRequest struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body ActivityFields
}

func (h *ActivityHandler) HandleUpdate(ctx context.Context, input *UpdateActivityRequest) (*ActivityResponse, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	if input.Body.Capacity < 0 {
		return nil, huma.Error422UnprocessableEntity("Capacity cannot be negative")
	}

	var activity models.Activity
	if err := h.db.WithContext(ctx).First(&activity, input.ID).Error; err != nil {
		return nil, huma.Error404NotFound("Activity not found")
	}

	activity.Name = strings.TrimSpace(input.Body.Name)
	activity.Description = input.Body.Description
	activity.Date = input.Body.Date
	activity.StartTime = input.Body.StartTime
	activity.EndTime = input.Body.EndTime
	activity.Room = input.Body.Room
	activity.Capacity = input.Body.Capacity
	activity.Recurring = input.Body.Recurring
	activity.Weekdays = input.Body.Weekdays
	activity.Tags = input.Body.Tags

	if err := h.db.WithContext(ctx).Save(&activity).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to update activity")
	}
	return &ActivityResponse{Body: activity}, nil
}

type DeleteActivityRequest struct {
	auth.AuthInput
	ID uint `path:"id"`
}

// HandleDelete removes an activity and its registrations in one
// transaction. Message back-references are cleared afterwards,
// best-effort; a failure there leaves a dangling reference, never an
// invariant violation.
func (h *ActivityHandler) HandleDelete(ctx context.Context, input *DeleteActivityRequest) (*struct{}, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var activity models.Activity
		if err := tx.First(&activity, input.ID).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("activity_id = ?", input.ID).Delete(&models.Registration{}).Error; err != nil {
			return err
		}
		return tx.Delete(&activity).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Activity not found")
		}
		return nil, huma.Error500InternalServerError("Failed to delete activity")
	}

	if err := h.db.WithContext(ctx).Model(&models.Message{}).
		Where("activity_id = ?", input.ID).
		Update("activity_id", nil).Error; err != nil {
		h.log.Warn().Err(err).Uint("activity_id", input.ID).Msg("failed to clear message back-references")
	}

	return nil, nil
}

type RegistrantsRequest struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type RegistrantEntry struct {
	UserID    uint   `json:"user_id"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type RegistrantsResponse struct {
	Body struct {
		Registrants []RegistrantEntry `json:"registrants"`
		Capacity    int               `json:"capacity"`
		Remaining   int               `json:"remaining,omitempty"`
	}
}

func (h *ActivityHandler) HandleRegistrants(ctx context.Context, input *RegistrantsRequest) (*RegistrantsResponse, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	regs, err := h.svc.Registrants(ctx, input.ID)
	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			return nil, huma.Error404NotFound("Activity not found")
		}
		return nil, huma.Error500InternalServerError("Failed to list registrants")
	}

	var activity models.Activity
	if err := h.db.WithContext(ctx).First(&activity, input.ID).Error; err != nil {
		return nil, huma.Error404NotFound("Activity not found")
	}

	res := &RegistrantsResponse{}
	res.Body.Capacity = activity.Capacity
	if !activity.Unlimited() {
		res.Body.Remaining = activity.Capacity - len(regs)
	}
	for _, r := range regs {
		res.Body.Registrants = append(res.Body.Registrants, RegistrantEntry{
			UserID:    r.UserID,
			Phone:     r.User.Phone,
			FirstName: r.User.FirstName,
			LastName:  r.User.LastName,
		})
	}
	return res, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
