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

// Package memory implements the repository interfaces on process-local
// maps. Every mutation of a single record happens under the owning
// repository's lock, which gives the check-and-set semantics the protocol
// relies on: consuming a code and rotating a refresh token are serialized,
// so two concurrent redemptions observe exactly one success. Readers get
// snapshot copies.
package memory

import (
	"context"
	"log/slog"

	"github.com/trustgate/trustgate/internal/observability/logger"
)

// Store bundles the in-memory repositories behind one lifecycle
type Store struct {
	Clients    *ClientRepository
	Codes      *AuthorizationCodeRepository
	Access     *AccessTokenRepository
	Refresh    *RefreshTokenRepository
	Users      *UserRepository
	Factors    *FactorRepository
	Challenges *ChallengeRepository
}

// New creates an empty store
func New() *Store {
	return &Store{
		Clients:    NewClientRepository(),
		Codes:      NewAuthorizationCodeRepository(),
		Access:     NewAccessTokenRepository(),
		Refresh:    NewRefreshTokenRepository(),
		Users:      NewUserRepository(),
		Factors:    NewFactorRepository(),
		Challenges: NewChallengeRepository(),
	}
}

// Sweep removes expired codes, tokens and challenges. Non-expired records
// are never evicted.
func (s *Store) Sweep(ctx context.Context) {
	if err := s.Codes.DeleteExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "code sweep failed", logger.Error(err))
	}
	if err := s.Access.DeleteExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "access token sweep failed", logger.Error(err))
	}
	if err := s.Refresh.DeleteExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "refresh token sweep failed", logger.Error(err))
	}
	if err := s.Challenges.DeleteExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "challenge sweep failed", logger.Error(err))
	}
}
