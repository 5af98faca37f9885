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

package oauth2

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE challenge methods (RFC 7636 Section 4.3)
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// ValidPKCEMethod reports whether the method is in the permitted set.
func ValidPKCEMethod(method string) bool {
	return method == PKCEMethodPlain || method == PKCEMethodS256
}

// ValidCodeVerifier checks the verifier against the RFC 7636 Section 4.1
// grammar: 43-128 characters from the unreserved set.
func ValidCodeVerifier(verifier string) bool {
	if len(verifier) < 43 || len(verifier) > 128 {
		return false
	}
	for i := 0; i < len(verifier); i++ {
		c := verifier[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}

// VerifyPKCE checks the verifier against the stored challenge under the
// stored method (RFC 7636 Section 4.6). Comparisons are constant time.
func VerifyPKCE(challenge, method, verifier string) bool {
	if !ValidCodeVerifier(verifier) {
		return false
	}

	switch method {
	case PKCEMethodPlain:
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case PKCEMethodS256:
		hash := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(hash[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(computed)) == 1
	}

	return false
}
