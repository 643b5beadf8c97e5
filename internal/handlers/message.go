package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/goldenage/center-api/internal/auth"
	"github.com/goldenage/center-api/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type MessageHandler struct {
	db          *gorm.DB
	authHandler *auth.AuthHandler
	log         zerolog.Logger
}

func NewMessageHandler(db *gorm.DB, authHandler *auth.AuthHandler, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		db:          db,
		authHandler: authHandler,
		log:         log.With().Str("component", "handlers").Logger(),
	}
}

type CreateMessageRequest struct {
	auth.AuthInput
	Body struct {
		Title      string `json:"title" required:"true"`
		Text       string `json:"body" required:"true"`
		ActivityID *uint  `json:"activity_id,omitempty" doc:"Optional activity this message is about"`
	}
}

type MessageResponse struct {
	Body models.Message
}

func (h *MessageHandler) HandleCreate(ctx context.Context, input *CreateMessageRequest) (*MessageResponse, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Body.Title) == "" {
		return nil, huma.Error422UnprocessableEntity("Message title is required")
	}
	if input.Body.ActivityID != nil {
		var activity models.Activity
		if err := h.db.WithContext(ctx).First(&activity, *input.Body.ActivityID).Error; err != nil {
			return nil, huma.Error404NotFound("Activity not found")
		}
	}

	message := models.Message{
		Title:      strings.TrimSpace(input.Body.Title),
		Body:       input.Body.Text,
		ActivityID: input.Body.ActivityID,
	}
	if err := h.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to create message")
	}
	return &MessageResponse{Body: message}, nil
}

type ListMessagesResponse struct {
	Body struct {
		Messages []models.Message `json:"messages"`
	}
}

func (h *MessageHandler) HandleList(ctx context.Context, _ *struct{}) (*ListMessagesResponse, error) {
	var messages []models.Message
	if err := h.db.WithContext(ctx).Order("created_at desc").Find(&messages).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to list messages")
	}
	res := &ListMessagesResponse{}
	res.Body.Messages = messages
	return res, nil
}

type DeleteMessageRequest struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *MessageHandler) HandleDelete(ctx context.Context, input *DeleteMessageRequest) (*struct{}, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.Message
		if err := tx.First(&message, input.ID).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("message_id = ?", input.ID).Delete(&models.MessageReply{}).Error; err != nil {
			return err
		}
		return tx.Delete(&message).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Message not found")
		}
		return nil, huma.Error500InternalServerError("Failed to delete message")
	}
	return nil, nil
}

type ReplyRequest struct {
	auth.AuthInput
	MessageID uint `path:"id"`
	Body      struct {
		Text string `json:"body" required:"true"`
	}
}

type ReplyResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// HandleReply records a member's reply. One reply per member per
// message, checked in the same transaction as the insert.
func (h *MessageHandler) HandleReply(ctx context.Context, input *ReplyRequest) (*ReplyResponse, error) {
	userID, err := h.authHandler.Authorize(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.Message
		if err := tx.First(&message, input.MessageID).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.MessageReply{}).
			Where("message_id = ? AND user_id = ?", input.MessageID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return gorm.ErrDuplicatedKey
		}

		reply := models.MessageReply{
			MessageID: input.MessageID,
			UserID:    userID,
			Body:      input.Body.Text,
		}
		return tx.Create(&reply).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, huma.Error404NotFound("Message not found")
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, huma.Error409Conflict("You already replied to this message")
		default:
			return nil, huma.Error500InternalServerError("Failed to reply")
		}
	}

	res := &ReplyResponse{}
	res.Body.Message = "Reply recorded"
	return res, nil
}

type ListRepliesRequest struct {
	auth.AuthInput
	MessageID uint `path:"id"`
}

type ReplyEntry struct {
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Text      string `json:"body"`
}

type ListRepliesResponse struct {
	Body struct {
		Replies []ReplyEntry `json:"replies"`
	}
}

func (h *MessageHandler) HandleReplies(ctx context.Context, input *ListRepliesRequest) (*ListRepliesResponse, error) {
	if _, err := h.authHandler.AuthorizeStaff(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	var replies []models.MessageReply
	if err := h.db.WithContext(ctx).Preload("User").
		Where("message_id = ?", input.MessageID).
		Order("created_at asc").
		Find(&replies).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to list replies")
	}

	res := &ListRepliesResponse{}
	for _, r := range replies {
		res.Body.Replies = append(res.Body.Replies, ReplyEntry{
			UserID:    r.UserID,
			FirstName: r.User.FirstName,
			LastName:  r.User.LastName,
			Text:      r.Body,
		})
	}
	return res, nil
}
