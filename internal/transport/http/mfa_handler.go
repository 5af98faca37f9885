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
	"encoding/json"
	"net/http"

	"github.com/trustgate/trustgate/internal/mfa"
)

// EnrollTOTPRequest carries TOTP enrolment input
type EnrollTOTPRequest struct {
	AccountName string `json:"account_name"`
}

// EnrollTOTP enrols an authenticator app factor
// @Summary Enrol TOTP
// @Description Provision a TOTP factor and backup codes for the subject
// @Tags MFA
// @Accept json
// @Produce json
// @Success 200 {object} mfa.TOTPEnrolment
// @Failure 401 {object} map[string]string
// @Router /mfa/enroll/totp [post]
func (h *Handler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	var req EnrollTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := GetUserID(r.Context())
	accountName := req.AccountName
	if accountName == "" {
		// Authenticator apps label the entry with the account name; the
		// subject's email is the natural default.
		if user, err := h.identityService.GetUser(r.Context(), userID); err == nil {
			accountName = user.Email
		} else {
			accountName = userID
		}
	}

	enrolment, err := h.mfaService.EnrollTOTP(r.Context(), userID, accountName)
	if err != nil {
		h.respondMFAError(w, err)
		return
	}

	// The secret and backup codes appear in this response only.
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, enrolment)
}

// EnrollDeliveryRequest carries sms/email enrolment input
type EnrollDeliveryRequest struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
}

// EnrollDelivery enrols an sms or email factor
// @Summary Enrol SMS/Email
// @Description Provision a delivery factor; confirmation runs as a challenge
// @Tags MFA
// @Accept json
// @Produce json
// @Success 200 {object} mfa.ChallengeInfo
// @Failure 400 {object} mfa.Error
// @Router /mfa/enroll/delivery [post]
func (h *Handler) EnrollDelivery(w http.ResponseWriter, r *http.Request) {
	var req EnrollDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.mfaService.EnrollDelivery(r.Context(), GetUserID(r.Context()), mfa.FactorKind(req.Kind), req.Destination)
	if err != nil {
		h.respondMFAError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// ChallengeRequest selects the factor kind to challenge
type ChallengeRequest struct {
	Kind string `json:"kind,omitempty"`
}

// CreateChallenge opens a verification challenge
// @Summary Create MFA Challenge
// @Description Open a challenge for one of the subject's factors
// @Tags MFA
// @Accept json
// @Produce json
// @Success 200 {object} mfa.ChallengeInfo
// @Failure 400 {object} mfa.Error
// @Router /mfa/challenge [post]
func (h *Handler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.mfaService.CreateChallenge(r.Context(), GetUserID(r.Context()), mfa.FactorKind(req.Kind))
	if err != nil {
		h.respondMFAError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// VerifyRequest carries a challenge response
type VerifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

// VerifyResponse reports a verification outcome
type VerifyResponse struct {
	Verified          bool `json:"verified"`
	RemainingAttempts int  `json:"remaining_attempts,omitempty"`
}

// VerifyChallenge checks a submitted code
// @Summary Verify MFA Challenge
// @Description Verify a code against an open challenge
// @Tags MFA
// @Accept json
// @Produce json
// @Success 200 {object} VerifyResponse
// @Failure 400 {object} mfa.Error
// @Router /mfa/verify [post]
func (h *Handler) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.mfaService.Verify(r.Context(), req.ChallengeID, GetUserID(r.Context()), req.Code)
	if err != nil {
		h.respondMFAError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, VerifyResponse{
		Verified:          result.OK,
		RemainingAttempts: result.Remaining,
	})
}

// CancelRequest names the challenge to cancel
type CancelRequest struct {
	ChallengeID string `json:"challenge_id"`
}

// CancelChallenge abandons an open challenge
// @Summary Cancel MFA Challenge
// @Tags MFA
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} mfa.Error
// @Router /mfa/cancel [post]
func (h *Handler) CancelChallenge(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.mfaService.Cancel(r.Context(), req.ChallengeID, GetUserID(r.Context())); err != nil {
		h.respondMFAError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// respondMFAError serializes an MFA error without leaking which factor or
// destination was involved
func (h *Handler) respondMFAError(w http.ResponseWriter, err error) {
	if mfaErr, ok := err.(*mfa.Error); ok {
		status := http.StatusBadRequest
		if mfaErr.Code == mfa.ErrMFALocked {
			status = http.StatusTooManyRequests
		}
		respondJSON(w, status, mfaErr)
		return
	}

	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
}
