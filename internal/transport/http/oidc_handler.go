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
	"fmt"
	"net/http"

	"github.com/trustgate/trustgate/internal/oidc"
)

// Discovery returns the OpenID Connect metadata (OIDC Discovery Section 4)
// @Summary OIDC Discovery
// @Description Returns OpenID Connect configuration metadata
// @Tags OIDC
// @Produce json
// @Success 200 {object} oidc.DiscoveryMetadata
// @Router /.well-known/openid-configuration [get]
func (h *Handler) Discovery(w http.ResponseWriter, r *http.Request) {
	// OIDC Discovery Section 4.2: Content-Type MUST be application/json
	respondJSON(w, http.StatusOK, h.oidcService.GetDiscoveryMetadata())
}

// JWKS returns the JSON Web Key Set (RFC 7517)
// @Summary JWKS
// @Description Returns the public signing keys
// @Tags OIDC
// @Produce json
// @Success 200 {object} oidc.JWKS
// @Router /.well-known/jwks.json [get]
func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.oidcService.GetJWKS())
}

// UserInfo returns claims for the Bearer token's subject
// (OIDC Core Section 5.3)
// @Summary UserInfo
// @Description Returns claims selected by the access token's scopes
// @Tags OIDC
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /oauth/userinfo [get]
func (h *Handler) UserInfo(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	token, err := h.oauth2Service.ValidateAccessToken(r.Context(), raw)
	if err != nil {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer error=%q", oidc.ErrInvalidToken))
		respondError(w, http.StatusUnauthorized, oidc.ErrInvalidToken)
		return
	}

	if token.UserID == "" {
		// Client-credentials tokens carry no subject.
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer error=%q", oidc.ErrInsufficientScope))
		respondError(w, http.StatusForbidden, oidc.ErrInsufficientScope)
		return
	}

	claims, err := h.oidcService.UserInfo(r.Context(), token.UserID, token.Scope)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load claims")
		return
	}

	respondJSON(w, http.StatusOK, claims)
}
