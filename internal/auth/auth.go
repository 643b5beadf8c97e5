// Package auth owns identity for the whole service. Members identify
// by phone number and receive a signed cookie; staff sign in through
// Discord OAuth and are gated on guild membership. Handlers never read
// identity from anywhere else: the session cookie is the single source
// of truth for "who is identified".
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/goldenage/center-api/internal/config"
	"github.com/goldenage/center-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	DiscordAuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
	DiscordTokenEndpoint     = "https://discord.com/api/oauth2/token"
	DiscordUserAPI           = "https://discord.com/api/users/@me"
	DiscordUserGuildsAPI     = "https://discord.com/api/users/@me/guilds"

	MemberCookieName = "auth_token"
	StaffCookieName  = "staff_token"

	TokenDuration = 24 * time.Hour
)

type AuthHandler struct {
	oauthConfig *oauth2.Config
	db          *gorm.DB
	cfg         *config.Config
	log         zerolog.Logger
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURL,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  DiscordAuthorizeEndpoint,
				TokenURL: DiscordTokenEndpoint,
			},
		},
		db:  db,
		cfg: cfg,
		log: log.With().Str("component", "auth").Logger(),
	}
}

type IdentifyInput struct {
	Body struct {
		Phone     string `json:"phone" doc:"Member phone number, any formatting" required:"true"`
		FirstName string `json:"first_name" doc:"Display first name"`
		LastName  string `json:"last_name" doc:"Display last name"`
		Senior    bool   `json:"senior" doc:"Member is in the 60+ class"`
	}
}

type IdentifyOutput struct {
	SetCookie string `header:"Set-Cookie"`
	Body      struct {
		UserID    uint   `json:"user_id"`
		Phone     string `json:"phone"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
}

// HandleIdentify finds or creates the member keyed by normalized phone
// number and starts a session. Re-identifying with different name
// spelling or formatting maps to the same user row.
func (h *AuthHandler) HandleIdentify(ctx context.Context, input *IdentifyInput) (*IdentifyOutput, error) {
	phone, err := NormalizePhone(input.Body.Phone)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	// Find-or-create runs in one transaction so concurrent first-time
	// identifications of the same phone serialize on the write lock and
	// land on a single user row instead of racing the unique index.
	var user models.User
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.FirstOrInit(&user, models.User{Phone: phone}).Error; err != nil {
			return err
		}
		if input.Body.FirstName != "" {
			user.FirstName = input.Body.FirstName
		}
		if input.Body.LastName != "" {
			user.LastName = input.Body.LastName
		}
		if input.Body.Senior {
			user.Senior = true
		}
		user.Registered = true
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to save user")
	}

	token, err := h.GenerateToken(user.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate token")
	}

	h.log.Info().Uint("user_id", user.ID).Msg("member identified")

	out := &IdentifyOutput{SetCookie: sessionCookie(MemberCookieName, token, TokenDuration)}
	out.Body.UserID = user.ID
	out.Body.Phone = user.Phone
	out.Body.FirstName = user.FirstName
	out.Body.LastName = user.LastName
	return out, nil
}

type SignOutOutput struct {
	SetCookie string `header:"Set-Cookie"`
	Body      struct {
		Message string `json:"message"`
	}
}

// HandleSignOut clears the member session cookie.
func (h *AuthHandler) HandleSignOut(ctx context.Context, _ *struct{}) (*SignOutOutput, error) {
	out := &SignOutOutput{SetCookie: sessionCookie(MemberCookieName, "", -time.Hour)}
	out.Body.Message = "Signed out"
	return out, nil
}

type MeInput struct {
	AuthInput
}

type MeOutput struct {
	Body struct {
		UserID    uint   `json:"user_id"`
		Phone     string `json:"phone"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Senior    bool   `json:"senior"`
	}
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *MeInput) (*MeOutput, error) {
	userID, err := h.Authorize(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}

	out := &MeOutput{}
	out.Body.UserID = user.ID
	out.Body.Phone = user.Phone
	out.Body.FirstName = user.FirstName
	out.Body.LastName = user.LastName
	out.Body.Senior = user.Senior
	return out, nil
}

// HandleStaffLogin starts the Discord OAuth flow for staff sign-in.
func (h *AuthHandler) HandleStaffLogin(w http.ResponseWriter, r *http.Request) {
	url := h.oauthConfig.AuthCodeURL("state", oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleStaffCallback finishes the OAuth flow. Only members of the
// configured staff guild get a staff session.
func (h *AuthHandler) HandleStaffCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	client := h.oauthConfig.Client(r.Context(), token)

	if h.cfg.DiscordStaffGuildID != "" {
		isMember, err := h.inGuild(client, h.cfg.DiscordStaffGuildID)
		if err != nil {
			http.Error(w, "Failed to get user guilds", http.StatusInternalServerError)
			return
		}
		if !isMember {
			http.Error(w, "Access denied: not a member of the staff server.", http.StatusForbidden)
			return
		}
	}

	resp, err := client.Get(DiscordUserAPI)
	if err != nil {
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	var discordUser struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&discordUser); err != nil {
		http.Error(w, "Failed to decode user info", http.StatusInternalServerError)
		return
	}

	staffToken, err := h.GenerateStaffToken(discordUser.ID, discordUser.Username)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StaffCookieName,
		Value:    staffToken,
		Expires:  time.Now().Add(TokenDuration),
		HttpOnly: true,
		Path:     "/",
	})

	h.log.Info().Str("staff_id", discordUser.ID).Str("username", discordUser.Username).Msg("staff signed in")
	http.Redirect(w, r, h.cfg.FrontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) inGuild(client *http.Client, guildID string) (bool, error) {
	resp, err := client.Get(DiscordUserGuildsAPI)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var guilds []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&guilds); err != nil {
		return false, err
	}

	for _, g := range guilds {
		if g.ID == guildID {
			return true, nil
		}
	}
	return false, nil
}

// GenerateToken signs a member session token.
func (h *AuthHandler) GenerateToken(userID uint) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(TokenDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// GenerateStaffToken signs a staff session token keyed by Discord ID.
func (h *AuthHandler) GenerateStaffToken(discordID, username string) (string, error) {
	claims := jwt.MapClaims{
		"staff_id":   discordID,
		"staff_name": username,
		"exp":        time.Now().Add(TokenDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

func (h *AuthHandler) parseClaims(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func sessionCookie(name, value string, ttl time.Duration) string {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Path:     "/",
	}
	return c.String()
}
