package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/goldenage/center-api/internal/auth"
	"github.com/goldenage/center-api/internal/models"
	"github.com/goldenage/center-api/internal/notifier"
	"github.com/goldenage/center-api/internal/registration"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type RegistrationHandler struct {
	db          *gorm.DB
	svc         *registration.Service
	notifier    notifier.Notifier
	authHandler *auth.AuthHandler
	log         zerolog.Logger
}

func NewRegistrationHandler(db *gorm.DB, svc *registration.Service, n notifier.Notifier, authHandler *auth.AuthHandler, log zerolog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		db:          db,
		svc:         svc,
		notifier:    n,
		authHandler: authHandler,
		log:         log.With().Str("component", "handlers").Logger(),
	}
}

type RegisterRequest struct {
	auth.AuthInput
	ActivityID uint `path:"id"`
	Body       struct {
		UserID uint `json:"user_id,omitempty" doc:"Optional member to register on behalf of (staff only)"`
	} `required:"false"`
}

type RegisterResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// HandleRegister registers a member for an activity. Members register
// themselves via their session; staff may register any member by
// passing user_id.
func (h *RegistrationHandler) HandleRegister(ctx context.Context, input *RegisterRequest) (*RegisterResponse, error) {
	userID, err := h.resolveTarget(ctx, input.AuthInput, input.Body.UserID)
	if err != nil {
		return nil, err
	}

	if err := h.svc.Register(ctx, input.ActivityID, userID); err != nil {
		switch {
		case errors.Is(err, registration.ErrNotFound):
			return nil, huma.Error404NotFound("Activity not found")
		case errors.Is(err, registration.ErrCapacityExceeded):
			return nil, huma.Error409Conflict("Activity is full")
		default:
			return nil, huma.Error500InternalServerError("Failed to register: " + err.Error())
		}
	}

	h.notifyRegistration(ctx, input.ActivityID, userID)

	res := &RegisterResponse{}
	res.Body.Message = "Registered"
	return res, nil
}

type UnregisterRequest struct {
	auth.AuthInput
	ActivityID uint `path:"id"`
	UserID     uint `query:"user_id" doc:"Optional member to unregister on behalf of (staff only)"`
}

// HandleUnregister removes a member's registration. Removing an absent
// registration is a successful no-op.
func (h *RegistrationHandler) HandleUnregister(ctx context.Context, input *UnregisterRequest) (*RegisterResponse, error) {
	userID, err := h.resolveTarget(ctx, input.AuthInput, input.UserID)
	if err != nil {
		return nil, err
	}

	if err := h.svc.Unregister(ctx, input.ActivityID, userID); err != nil {
		return nil, huma.Error500InternalServerError("Failed to unregister: " + err.Error())
	}

	h.notifyUnregistration(ctx, input.ActivityID, userID)

	res := &RegisterResponse{}
	res.Body.Message = "Unregistered"
	return res, nil
}

type MyActivitiesRequest struct {
	auth.AuthInput
}

type MyActivitiesResponse struct {
	Body struct {
		Activities []models.Activity `json:"activities"`
	}
}

// HandleMyActivities lists the caller's registered activities, derived
// from the registrations table on every read.
func (h *RegistrationHandler) HandleMyActivities(ctx context.Context, input *MyActivitiesRequest) (*MyActivitiesResponse, error) {
	userID, err := h.authHandler.Authorize(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}

	activities, err := h.svc.UserActivities(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list activities")
	}

	res := &MyActivitiesResponse{}
	res.Body.Activities = activities
	return res, nil
}

// resolveTarget picks the member a registration change applies to: the
// session user, or an explicit user_id when the caller is staff.
func (h *RegistrationHandler) resolveTarget(ctx context.Context, in auth.AuthInput, explicit uint) (uint, error) {
	if explicit == 0 {
		return h.authHandler.Authorize(ctx, in.Cookie)
	}

	if _, err := h.authHandler.AuthorizeStaff(ctx, in); err != nil {
		return 0, err
	}
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, explicit).Error; err != nil {
		return 0, huma.Error404NotFound("Member not found")
	}
	return user.ID, nil
}

func (h *RegistrationHandler) notifyRegistration(ctx context.Context, activityID, userID uint) {
	if h.notifier == nil {
		return
	}
	user, activity, ok := h.loadPair(ctx, activityID, userID)
	if !ok {
		return
	}
	remaining := 0
	if !activity.Unlimited() {
		count, err := h.svc.Count(ctx, activityID)
		if err == nil {
			remaining = activity.Capacity - int(count)
		}
	}
	if err := h.notifier.NotifyRegistration(user, activity, remaining); err != nil {
		h.log.Warn().Err(err).Msg("registration notification failed")
	}
}

func (h *RegistrationHandler) notifyUnregistration(ctx context.Context, activityID, userID uint) {
	if h.notifier == nil {
		return
	}
	user, activity, ok := h.loadPair(ctx, activityID, userID)
	if !ok {
		return
	}
	if err := h.notifier.NotifyUnregistration(user, activity); err != nil {
		h.log.Warn().Err(err).Msg("unregistration notification failed")
	}
}

func (h *RegistrationHandler) loadPair(ctx context.Context, activityID, userID uint) (models.User, models.Activity, bool) {
	var user models.User
	var activity models.Activity
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return user, activity, false
	}
	if err := h.db.WithContext(ctx).First(&activity, activityID).Error; err != nil {
		return user, activity, false
	}
	return user, activity, true
}
