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
	"context"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Subject is an authenticated end-user as reported by the login
// collaborator.
type Subject struct {
	UserID string
	// MFAVerified reports that the collaborator consumed an MFA challenge
	// during this login; the token endpoint's step-up gate trusts it.
	MFAVerified bool
}

// SubjectResolver is the port to the login collaborator. The core never
// handles login UI or session cookies; it only consumes the resolved
// subject of a request.
type SubjectResolver interface {
	Resolve(r *http.Request) (*Subject, error)
}

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

// WithUserID stores the authenticated User ID in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
