package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goldenage/center-api/internal/auth"
	"github.com/goldenage/center-api/internal/config"
)

func RegisterRoutes(
	r *chi.Mux,
	cfg *config.Config,
	authHandler *auth.AuthHandler,
	activityHandler *ActivityHandler,
	registrationHandler *RegistrationHandler,
	surveyHandler *SurveyHandler,
	messageHandler *MessageHandler,
	apiKeyHandler *APIKeyHandler,
) {
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	if cfg.EnableCORS {
		r.Use(corsMiddleware)
	}

	// Initialize Huma API
	humaConfig := huma.DefaultConfig("Community Center API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.MemberCookieName,
		},
		"staffCookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.StaffCookieName,
		},
		"apiKeyAuth": {
			Type: "apiKey",
			In:   "header",
			Name: "X-API-KEY",
		},
	}
	api := humachi.New(r, humaConfig)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Staff sign-in (Discord OAuth)
	r.Get("/auth/discord/login", authHandler.HandleStaffLogin)
	r.Get("/auth/discord/callback", authHandler.HandleStaffCallback)

	// Member session
	huma.Post(api, "/identify", authHandler.HandleIdentify)
	huma.Post(api, "/signout", authHandler.HandleSignOut)
	huma.Get(api, "/me", authHandler.HandleMe, memberAuth)
	huma.Get(api, "/me/activities", registrationHandler.HandleMyActivities, memberAuth)

	// Activities
	huma.Get(api, "/activities", activityHandler.HandleList)
	huma.Get(api, "/activities/{id}", activityHandler.HandleGet)
	huma.Post(api, "/activities", activityHandler.HandleCreate, staffAuth)
	huma.Put(api, "/activities/{id}", activityHandler.HandleUpdate, staffAuth)
	huma.Delete(api, "/activities/{id}", activityHandler.HandleDelete, staffAuth)
	huma.Get(api, "/activities/{id}/registrants", activityHandler.HandleRegistrants, staffAuth)

	// Registration
	huma.Post(api, "/activities/{id}/register", registrationHandler.HandleRegister, memberAuth)
	huma.Delete(api, "/activities/{id}/register", registrationHandler.HandleUnregister, memberAuth)

	// Surveys
	huma.Get(api, "/surveys", surveyHandler.HandleList)
	huma.Get(api, "/surveys/{id}", surveyHandler.HandleGet)
	huma.Post(api, "/surveys", surveyHandler.HandleCreate, staffAuth)
	huma.Put(api, "/surveys/{id}", surveyHandler.HandleUpdate, staffAuth)
	huma.Delete(api, "/surveys/{id}", surveyHandler.HandleDelete, staffAuth)
	huma.Post(api, "/surveys/{id}/responses", surveyHandler.HandleSubmit, memberAuth)
	huma.Get(api, "/surveys/{id}/responses", surveyHandler.HandleResponses, staffAuth)

	// Messages
	huma.Get(api, "/messages", messageHandler.HandleList)
	huma.Post(api, "/messages", messageHandler.HandleCreate, staffAuth)
	huma.Delete(api, "/messages/{id}", messageHandler.HandleDelete, staffAuth)
	huma.Post(api, "/messages/{id}/replies", messageHandler.HandleReply, memberAuth)
	huma.Get(api, "/messages/{id}/replies", messageHandler.HandleReplies, staffAuth)

	// API keys
	huma.Post(api, "/api-keys", apiKeyHandler.HandleCreate, staffAuth)
	huma.Get(api, "/api-keys", apiKeyHandler.HandleList, staffAuth)
	huma.Delete(api, "/api-keys/{id}", apiKeyHandler.HandleDelete, staffAuth)
}

func memberAuth(o *huma.Operation) {
	o.Security = []map[string][]string{{"cookieAuth": {}}}
}

func staffAuth(o *huma.Operation) {
	o.Security = []map[string][]string{{"staffCookieAuth": {}}, {"apiKeyAuth": {}}}
}

// corsMiddleware is intentionally permissive; the deployment sits
// behind the center's reverse proxy.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-KEY")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
