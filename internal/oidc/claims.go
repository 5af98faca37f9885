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

package oidc

import (
	"strings"

	"github.com/trustgate/trustgate/internal/identity"
)

// ScopeClaims maps granted scopes to the claims they release
// (OIDC Core Section 5.4). The same mapping drives id_token payloads and
// userinfo responses.
func ScopeClaims(user *identity.User, scope string) map[string]any {
	claims := map[string]any{}

	for _, s := range strings.Fields(scope) {
		switch s {
		case "profile":
			if user.Name != "" {
				claims["name"] = user.Name
			}
			if user.Picture != "" {
				claims["picture"] = user.Picture
			}
		case "email":
			claims["email"] = user.Email
			claims["email_verified"] = user.EmailVerified
		}
	}

	return claims
}
