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

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/trustgate/trustgate/internal/mfa"
)

// FactorRepository implements mfa.FactorRepository
type FactorRepository struct {
	mu      sync.RWMutex
	factors map[string]*mfa.Factor
}

// NewFactorRepository creates an empty factor repository
func NewFactorRepository() *FactorRepository {
	return &FactorRepository{factors: make(map[string]*mfa.Factor)}
}

// Create creates a new factor
func (r *FactorRepository) Create(ctx context.Context, factor *mfa.Factor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := cloneFactor(factor)
	r.factors[factor.ID] = f
	return nil
}

// GetByID retrieves a factor
func (r *FactorRepository) GetByID(ctx context.Context, id string) (*mfa.Factor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factor, ok := r.factors[id]
	if !ok {
		return nil, mfa.ErrFactorNotFound
	}
	return cloneFactor(factor), nil
}

// ListByUser retrieves all factors for a user
func (r *FactorRepository) ListByUser(ctx context.Context, userID string) ([]*mfa.Factor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*mfa.Factor
	for _, factor := range r.factors {
		if factor.UserID == userID {
			out = append(out, cloneFactor(factor))
		}
	}
	return out, nil
}

// Update updates factor state
func (r *FactorRepository) Update(ctx context.Context, factor *mfa.Factor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factors[factor.ID]; !ok {
		return mfa.ErrFactorNotFound
	}
	r.factors[factor.ID] = cloneFactor(factor)
	return nil
}

// Delete removes a factor
func (r *FactorRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.factors, id)
	return nil
}

func cloneFactor(factor *mfa.Factor) *mfa.Factor {
	f := *factor
	f.BackupCodes = append([]string(nil), factor.BackupCodes...)
	return &f
}

// ChallengeRepository implements mfa.ChallengeRepository
type ChallengeRepository struct {
	mu         sync.Mutex
	challenges map[string]*mfa.Challenge
}

// NewChallengeRepository creates an empty challenge repository
func NewChallengeRepository() *ChallengeRepository {
	return &ChallengeRepository{challenges: make(map[string]*mfa.Challenge)}
}

// Create creates a new challenge
func (r *ChallengeRepository) Create(ctx context.Context, challenge *mfa.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *challenge
	r.challenges[challenge.ID] = &c
	return nil
}

// GetByID retrieves a challenge
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*mfa.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.challenges[id]
	if !ok {
		return nil, mfa.ErrChallengeNotFound
	}
	c := *challenge
	return &c, nil
}

// IncrementAttempts atomically bumps the attempt counter. Concurrent
// verifications each observe a distinct count.
func (r *ChallengeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.challenges[id]
	if !ok {
		return 0, mfa.ErrChallengeNotFound
	}
	challenge.Attempts++
	return challenge.Attempts, nil
}

// Delete removes a challenge
func (r *ChallengeRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.challenges, id)
	return nil
}

// DeleteExpired deletes all expired challenges
func (r *ChallengeRepository) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for key, challenge := range r.challenges {
		if now.After(challenge.ExpiresAt) {
			delete(r.challenges, key)
		}
	}
	return nil
}
