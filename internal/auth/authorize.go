package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/goldenage/center-api/internal/models"
)

// AuthInput is embedded by every protected operation's input struct so
// huma binds the session cookie and the optional automation key.
type AuthInput struct {
	Cookie string `header:"Cookie"`
	APIKey string `header:"X-API-KEY"`
}

// Authorize resolves a member session cookie to a user ID.
func (h *AuthHandler) Authorize(ctx context.Context, cookieHeader string) (uint, error) {
	tokenString, err := cookieValue(cookieHeader, MemberCookieName)
	if err != nil {
		return 0, huma.Error401Unauthorized("Unauthorized: no session")
	}

	claims, err := h.parseClaims(tokenString)
	if err != nil {
		return 0, huma.Error401Unauthorized("Unauthorized: invalid token")
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, huma.Error401Unauthorized("Unauthorized: invalid token claims")
	}
	return uint(userIDFloat), nil
}

// AuthorizeStaff resolves staff credentials: an API key header first,
// then the staff session cookie. It returns the staff member's Discord
// ID.
func (h *AuthHandler) AuthorizeStaff(ctx context.Context, input AuthInput) (string, error) {
	if input.APIKey != "" {
		var keyModel models.APIKey
		if err := h.db.WithContext(ctx).Where("key = ?", input.APIKey).First(&keyModel).Error; err != nil {
			return "", huma.Error401Unauthorized("Unauthorized: unknown API key")
		}
		if keyModel.ExpiresAt != nil && time.Now().After(*keyModel.ExpiresAt) {
			return "", huma.Error401Unauthorized("Unauthorized: API key expired")
		}
		h.db.WithContext(ctx).Model(&keyModel).Update("last_used_at", time.Now())
		return keyModel.StaffID, nil
	}

	tokenString, err := cookieValue(input.Cookie, StaffCookieName)
	if err != nil {
		return "", huma.Error401Unauthorized("Unauthorized: no staff session")
	}

	claims, err := h.parseClaims(tokenString)
	if err != nil {
		return "", huma.Error401Unauthorized("Unauthorized: invalid token")
	}

	staffID, ok := claims["staff_id"].(string)
	if !ok || staffID == "" {
		return "", huma.Error403Forbidden("Forbidden: staff session required")
	}
	return staffID, nil
}

// cookieValue pulls one cookie out of a raw Cookie header.
func cookieValue(cookieHeader, name string) (string, error) {
	req := http.Request{Header: http.Header{"Cookie": []string{cookieHeader}}}
	c, err := req.Cookie(name)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
