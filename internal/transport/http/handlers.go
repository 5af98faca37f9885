// @title TrustGate API
// @version 1.0.0
// @description OAuth 2.0 / OpenID Connect authorization server core

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trustgate/trustgate/internal/audit"
	"github.com/trustgate/trustgate/internal/identity"
	"github.com/trustgate/trustgate/internal/mfa"
	"github.com/trustgate/trustgate/internal/oauth2"
	"github.com/trustgate/trustgate/internal/oidc"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	oauth2Service   *oauth2.Service
	oidcService     *oidc.Service
	mfaService      *mfa.Service
	identityService *identity.Service
	auditLogger     audit.Logger
	subjects        SubjectResolver
}

// NewHandler creates a new HTTP handler
func NewHandler(
	oauth2Service *oauth2.Service,
	oidcService *oidc.Service,
	mfaService *mfa.Service,
	identityService *identity.Service,
	auditLogger audit.Logger,
	subjects SubjectResolver,
) *Handler {
	return &Handler{
		oauth2Service:   oauth2Service,
		oidcService:     oidcService,
		mfaService:      mfaService,
		identityService: identityService,
		auditLogger:     auditLogger,
		subjects:        subjects,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// OIDC Discovery & JWKS (OIDC Discovery Section 4)
	r.Get("/.well-known/openid-configuration", h.Discovery)
	r.Get("/.well-known/jwks.json", h.JWKS)

	// OAuth2 / OIDC protocol surface
	r.Route("/oauth", func(r chi.Router) {
		// Authorize endpoint requires an authenticated subject from the
		// login collaborator (RFC 6749 Section 4.1.1); resolution happens
		// in the handler so the MFA assertion travels with the subject.
		r.Get("/authorize", h.Authorize)

		// Token endpoint uses client authentication
		// (RFC 6749 Section 4.1.3)
		r.Post("/token", h.Token)

		// Introspection endpoint (RFC 7662)
		r.Post("/introspect", h.Introspect)

		// Revocation endpoint (RFC 7009)
		r.Post("/revoke", h.Revoke)

		// UserInfo endpoint requires a Bearer token (OIDC Core Section 5.3)
		r.Get("/userinfo", h.UserInfo)
		r.Post("/userinfo", h.UserInfo)
	})

	// MFA orchestration, driven by the login collaborator on behalf of an
	// authenticated subject
	r.Route("/mfa", func(r chi.Router) {
		r.Use(h.RequireSubject)
		r.Post("/enroll/totp", h.EnrollTOTP)
		r.Post("/enroll/delivery", h.EnrollDelivery)
		r.Post("/challenge", h.CreateChallenge)
		r.Post("/verify", h.VerifyChallenge)
		r.Post("/cancel", h.CancelChallenge)
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "trustgate",
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
