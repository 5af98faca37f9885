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

package mfa

import "fmt"

// Error represents a protocol-level MFA error. Messages never reveal which
// factor or destination was involved.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("mfa error: %s (%s)", e.Code, e.Description)
}

// MFA error codes
const (
	ErrMFARequired = "mfa_required"
	ErrMFAInvalid  = "mfa_invalid"
	ErrMFAExpired  = "mfa_expired"
	ErrMFALocked   = "mfa_locked"
)

// NewError creates a new protocol error
func NewError(code, description string) *Error {
	return &Error{
		Code:        code,
		Description: description,
	}
}
