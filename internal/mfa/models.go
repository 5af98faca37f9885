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

import (
	"context"
	"errors"
	"time"
)

// Domain errors (Internal)
var (
	ErrFactorNotFound    = errors.New("factor not found")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrNoUsableFactor    = errors.New("no usable factor")
)

// FactorKind identifies an MFA method
type FactorKind string

const (
	KindTOTP       FactorKind = "totp"
	KindSMS        FactorKind = "sms"
	KindEmail      FactorKind = "email"
	KindBackupCode FactorKind = "backup_code"
	// KindWebAuthn is recorded for enrolled authenticators; challenge
	// verification for it is handled by the login collaborator.
	KindWebAuthn FactorKind = "webauthn"
)

// Factor is one MFA method bound to a user. Lifecycle:
// unverified -> verified -> enabled <-> disabled. A factor counts towards
// MFA protection only when enabled and verified.
type Factor struct {
	ID       string
	UserID   string
	Kind     FactorKind
	Enabled  bool
	Verified bool
	// Secret holds the base32 TOTP secret for totp factors.
	Secret string
	// Destination holds the phone number or email address for sms/email.
	Destination string
	// BackupCodes holds the SHA-256 digests of unused backup codes.
	BackupCodes []string
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

// Usable reports whether the factor satisfies an MFA requirement
func (f *Factor) Usable() bool {
	return f.Enabled && f.Verified
}

// Challenge is a time-limited one-shot verification attempt. The plaintext
// code is never stored; only its digest. A verified challenge is destroyed.
type Challenge struct {
	ID          string
	UserID      string
	FactorID    string
	Kind        FactorKind
	CodeHash    string
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
}

// IsExpired checks if the challenge has expired
func (c *Challenge) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// FactorRepository defines the interface for factor persistence
type FactorRepository interface {
	// Create creates a new factor
	Create(ctx context.Context, factor *Factor) error

	// GetByID retrieves a factor
	GetByID(ctx context.Context, id string) (*Factor, error)

	// ListByUser retrieves all factors for a user
	ListByUser(ctx context.Context, userID string) ([]*Factor, error)

	// Update updates factor state
	Update(ctx context.Context, factor *Factor) error

	// Delete removes a factor
	Delete(ctx context.Context, id string) error
}

// ChallengeRepository defines the interface for challenge persistence.
// IncrementAttempts must be a serialized check-and-set per challenge.
type ChallengeRepository interface {
	// Create creates a new challenge
	Create(ctx context.Context, challenge *Challenge) error

	// GetByID retrieves a challenge
	GetByID(ctx context.Context, id string) (*Challenge, error)

	// IncrementAttempts atomically bumps the attempt counter and returns
	// the new value. Concurrent verifications each observe a distinct
	// count, so no challenge accepts more than MaxAttempts attempts.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// Delete removes a challenge
	Delete(ctx context.Context, id string) error

	// DeleteExpired deletes all expired challenges
	DeleteExpired(ctx context.Context) error
}

// Notifier delivers challenge codes out of band. Implementations must not
// be called while holding record locks; delivery failures do not fail
// challenge creation.
type Notifier interface {
	Send(ctx context.Context, kind FactorKind, destination, code string) error
}
