// Copyright 2026 The TrustGate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/trustgate/trustgate/internal/oauth2"
	"github.com/trustgate/trustgate/internal/observability/logger"
)

// Authorize starts the authorization code flow
// @Summary OAuth2 Authorize Endpoint
// @Description Starts the authorization flow (RFC 6749)
// @Tags OAuth2
// @Produce json
// @Param client_id query string true "Client ID"
// @Param redirect_uri query string true "Redirect URI"
// @Param response_type query string true "Response Type (must be 'code')"
// @Param scope query string false "Scopes"
// @Param state query string false "Opaque client state"
// @Param nonce query string false "Nonce (OIDC)"
// @Param code_challenge query string false "PKCE Challenge"
// @Param code_challenge_method query string false "PKCE Method (plain or S256)"
// @Success 302 {string} string "Redirects to callback"
// @Router /oauth/authorize [get]
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &oauth2.AuthorizeRequest{
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		ResponseType:        query.Get("response_type"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		Nonce:               query.Get("nonce"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
	}

	// Unknown client or unregistered redirect_uri must never redirect
	// (RFC 6749 Section 3.1.2.4).
	client, err := h.oauth2Service.ResolveClient(r.Context(), req.ClientID, req.RedirectURI)
	if err != nil {
		slog.ErrorContext(r.Context(), "invalid authorize request",
			logger.Error(err),
			logger.ClientID(req.ClientID),
			logger.RedirectURI(req.RedirectURI),
		)
		h.respondOAuthError(w, err)
		return
	}

	// Remaining validation failures are delivered to the verified
	// redirect_uri.
	if oe := h.oauth2Service.ValidateAuthorization(client, req); oe != nil {
		redirectWithParams(w, r, req.RedirectURI, url.Values{
			"error": {oe.Code},
			"state": {req.State},
		})
		return
	}

	// The login collaborator supplies the authenticated subject.
	subject, err := h.subjects.Resolve(r)
	if err != nil || subject == nil || subject.UserID == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	code, err := h.oauth2Service.CreateAuthorizationCode(r.Context(), req, subject.UserID, subject.MFAVerified)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create authorization code", logger.Error(err))
		redirectWithParams(w, r, req.RedirectURI, url.Values{
			"error": {oauth2.ErrServerError},
			"state": {req.State},
		})
		return
	}

	redirectWithParams(w, r, req.RedirectURI, url.Values{
		"code":  {code.Code},
		"state": {req.State},
	})
}

// Token is the token endpoint
// @Summary OAuth2 Token Endpoint
// @Description Exchange a grant for tokens (RFC 6749)
// @Tags OAuth2
// @Accept x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "authorization_code, client_credentials or refresh_token"
// @Param code formData string false "Authorization Code"
// @Param redirect_uri formData string false "Redirect URI"
// @Param client_id formData string false "Client ID (if not Basic Auth)"
// @Param client_secret formData string false "Client Secret (if not Basic Auth)"
// @Param code_verifier formData string false "PKCE Verifier"
// @Param refresh_token formData string false "Refresh Token"
// @Param scope formData string false "Scope"
// @Success 200 {object} oauth2.TokenResponse
// @Failure 400 {object} oauth2.Error
// @Failure 401 {object} oauth2.Error
// @Router /oauth/token [post]
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "invalid request"))
		return
	}

	clientID, clientSecret, err := clientCredentials(r)
	if err != nil {
		h.respondOAuthError(w, err)
		return
	}

	client, err := h.oauth2Service.AuthenticateClient(r.Context(), clientID, clientSecret)
	if err != nil {
		h.respondOAuthError(w, err)
		return
	}

	var grant oauth2.GrantRequest
	grantType := r.Form.Get("grant_type")
	switch grantType {
	case oauth2.GrantAuthorizationCode:
		grant = oauth2.AuthorizationCodeGrant{
			Code:         r.Form.Get("code"),
			RedirectURI:  r.Form.Get("redirect_uri"),
			CodeVerifier: r.Form.Get("code_verifier"),
		}
	case oauth2.GrantClientCredentials:
		grant = oauth2.ClientCredentialsGrant{
			Scope: r.Form.Get("scope"),
		}
	case oauth2.GrantRefreshToken:
		grant = oauth2.RefreshTokenGrant{
			RefreshToken: r.Form.Get("refresh_token"),
			Scope:        r.Form.Get("scope"),
		}
	default:
		h.respondOAuthError(w, oauth2.NewError(oauth2.ErrUnsupportedGrantType, ""))
		return
	}

	resp, err := h.oauth2Service.Exchange(r.Context(), client, grant)
	if err != nil {
		slog.ErrorContext(r.Context(), "token request failed",
			logger.Error(err),
			logger.GrantType(grantType),
			logger.ClientID(client.ClientID),
		)
		h.respondOAuthError(w, err)
		return
	}

	// Prevent caching (RFC 6749 Section 5.1)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	respondJSON(w, http.StatusOK, resp)
}

// Introspect reports token state to authenticated clients
// @Summary Token Introspection
// @Description Introspect a token (RFC 7662)
// @Tags OAuth2
// @Accept x-www-form-urlencoded
// @Produce json
// @Param token formData string true "Token to introspect"
// @Success 200 {object} oauth2.IntrospectionResponse
// @Failure 401 {object} oauth2.Error
// @Router /oauth/introspect [post]
func (h *Handler) Introspect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "invalid request"))
		return
	}

	clientID, clientSecret, err := clientCredentials(r)
	if err != nil {
		h.respondOAuthError(w, err)
		return
	}

	if _, err := h.oauth2Service.AuthenticateClient(r.Context(), clientID, clientSecret); err != nil {
		h.respondOAuthError(w, err)
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		h.respondOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "missing token"))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, h.oauth2Service.Introspect(r.Context(), token))
}

// Revoke handles the token revocation request (RFC 7009)
// @Summary Revoke Token
// @Description Revoke an access or refresh token (RFC 7009)
// @Tags OAuth2
// @Accept x-www-form-urlencoded
// @Produce json
// @Param token formData string true "Token to revoke"
// @Success 200 {string} string "OK"
// @Failure 400 {object} oauth2.Error
// @Router /oauth/revoke [post]
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "invalid request"))
		return
	}

	clientID, clientSecret, err := clientCredentials(r)
	if err != nil {
		h.respondOAuthError(w, err)
		return
	}

	client, err := h.oauth2Service.AuthenticateClient(r.Context(), clientID, clientSecret)
	if err != nil {
		h.respondOAuthError(w, err)
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		h.respondOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "missing token"))
		return
	}

	if err := h.oauth2Service.Revoke(r.Context(), client, token); err != nil {
		h.respondOAuthError(w, err)
		return
	}

	// RFC 7009 Section 2.2: 200 OK regardless of whether the token was
	// already revoked or unknown.
	w.WriteHeader(http.StatusOK)
}

// clientCredentials extracts client authentication from either the Basic
// header (client_secret_basic) or the form body (client_secret_post). A
// request using both at once is malformed (RFC 6749 Section 2.3).
func clientCredentials(r *http.Request) (string, string, error) {
	formID := r.Form.Get("client_id")
	formSecret := r.Form.Get("client_secret")
	basicID, basicSecret, hasBasic := r.BasicAuth()

	if hasBasic && formSecret != "" {
		return "", "", oauth2.NewError(oauth2.ErrInvalidRequest, "multiple client authentication methods")
	}

	if hasBasic {
		// Credentials are form-urlencoded inside the header
		// (RFC 6749 Appendix B).
		if id, err := url.QueryUnescape(basicID); err == nil {
			basicID = id
		}
		if secret, err := url.QueryUnescape(basicSecret); err == nil {
			basicSecret = secret
		}
		return basicID, basicSecret, nil
	}

	return formID, formSecret, nil
}

// redirectWithParams sends a 302 to the redirect URI with the given
// parameters appended to any it already carries.
func redirectWithParams(w http.ResponseWriter, r *http.Request, rawURL string, params url.Values) {
	target, err := url.Parse(rawURL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid redirect_uri")
		return
	}

	q := target.Query()
	for key, values := range params {
		for _, v := range values {
			if v != "" {
				q.Set(key, v)
			}
		}
	}
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// respondOAuthError serializes a protocol error into an HTTP response
func (h *Handler) respondOAuthError(w http.ResponseWriter, err error) {
	if oauthErr, ok := err.(*oauth2.Error); ok {
		status := http.StatusBadRequest
		switch oauthErr.Code {
		case oauth2.ErrInvalidClient:
			// RFC 6749 Section 5.2
			w.Header().Set("WWW-Authenticate", `Basic realm="trustgate"`)
			status = http.StatusUnauthorized
		case oauth2.ErrServerError:
			status = http.StatusInternalServerError
		}
		respondJSON(w, status, oauthErr)
		return
	}

	// Fallback for internal errors (opaque)
	respondJSON(w, http.StatusInternalServerError, oauth2.NewError(oauth2.ErrServerError, "internal server error"))
}
