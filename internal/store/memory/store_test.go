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
	"testing"
	"time"

	"github.com/trustgate/trustgate/internal/oauth2"
)

// TestPurpose: Validates the atomic consume contract: N concurrent
// redemptions of one code observe exactly one success.
// Scope: Concurrency Test
// Security: authorization code single-use invariant
func TestMemory_Codes_ConcurrentConsume(t *testing.T) {
	repo := NewAuthorizationCodeRepository()
	ctx := context.Background()

	code := &oauth2.AuthorizationCode{
		ID:        "c1",
		Code:      "the-code",
		ClientID:  "demo",
		UserID:    "u1",
		ExpiresAt: time.Now().Add(time.Minute),
		CreatedAt: time.Now(),
	}
	if err := repo.Create(ctx, code); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Consume(ctx, "the-code"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", count)
	}

	// Reentrant consumption observes the consumed state.
	if _, err := repo.Consume(ctx, "the-code"); err != oauth2.ErrCodeAlreadyUsed {
		t.Fatalf("expected ErrCodeAlreadyUsed, got %v", err)
	}
}

// TestPurpose: Validates the rotation check-and-set: concurrent rotations
// of one refresh token resolve to exactly one winner.
// Scope: Concurrency Test
// Security: refresh rotation integrity
func TestMemory_Refresh_ConcurrentRotate(t *testing.T) {
	repo := NewRefreshTokenRepository()
	ctx := context.Background()

	old := &oauth2.RefreshToken{
		ID:              "rt1",
		TokenHash:       "hash-1",
		ClientID:        "demo",
		UserID:          "u1",
		RotationChainID: "chain-1",
		ExpiresAt:       time.Now().Add(time.Hour),
		CreatedAt:       time.Now(),
	}
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			next := &oauth2.RefreshToken{
				ID:              "next",
				TokenHash:       "next-hash",
				RotationChainID: "chain-1",
				ExpiresAt:       old.ExpiresAt,
				CreatedAt:       time.Now(),
			}
			if err := repo.Rotate(ctx, "hash-1", next); err == nil {
				wins <- next.ID
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", count)
	}

	stored, err := repo.GetByTokenHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.IsReplaced() {
		t.Fatal("old token should be marked replaced")
	}
}

// TestPurpose: Validates chain revocation across rotated tokens.
// Scope: Unit Test
func TestMemory_Refresh_RevokeChain(t *testing.T) {
	repo := NewRefreshTokenRepository()
	ctx := context.Background()

	for _, h := range []string{"h1", "h2", "h3"} {
		repo.Create(ctx, &oauth2.RefreshToken{
			ID:              h,
			TokenHash:       h,
			RotationChainID: "chain-1",
			ExpiresAt:       time.Now().Add(time.Hour),
		})
	}
	repo.Create(ctx, &oauth2.RefreshToken{
		ID:              "other",
		TokenHash:       "other",
		RotationChainID: "chain-2",
		ExpiresAt:       time.Now().Add(time.Hour),
	})

	if err := repo.RevokeChain(ctx, "chain-1"); err != nil {
		t.Fatalf("revoke chain: %v", err)
	}

	for _, h := range []string{"h1", "h2", "h3"} {
		tok, _ := repo.GetByTokenHash(ctx, h)
		if !tok.IsRevoked {
			t.Errorf("token %s should be revoked", h)
		}
	}
	if tok, _ := repo.GetByTokenHash(ctx, "other"); tok.IsRevoked {
		t.Error("unrelated chain must stay untouched")
	}
}

// TestPurpose: Validates the TTL sweep: expired records vanish, live
// records survive.
// Scope: Unit Test
func TestMemory_Store_Sweep(t *testing.T) {
	store := New()
	ctx := context.Background()

	store.Codes.Create(ctx, &oauth2.AuthorizationCode{
		Code:      "dead",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	store.Codes.Create(ctx, &oauth2.AuthorizationCode{
		Code:      "alive",
		ExpiresAt: time.Now().Add(time.Minute),
	})
	store.Access.Create(ctx, &oauth2.AccessToken{
		TokenHash: "dead",
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	store.Sweep(ctx)

	if _, err := store.Codes.Consume(ctx, "dead"); err != oauth2.ErrCodeNotFound {
		t.Errorf("expected expired code removed, got %v", err)
	}
	if _, err := store.Codes.Consume(ctx, "alive"); err != nil {
		t.Errorf("live code must survive the sweep: %v", err)
	}
	if _, err := store.Access.GetByTokenHash(ctx, "dead"); err != oauth2.ErrTokenNotFound {
		t.Errorf("expected expired token removed, got %v", err)
	}
}

// TestPurpose: Validates that reads return snapshots: mutating a returned
// record does not affect the stored one.
// Scope: Unit Test
func TestMemory_Clients_SnapshotReads(t *testing.T) {
	repo := NewClientRepository()
	ctx := context.Background()

	repo.Create(ctx, &oauth2.Client{ClientID: "demo", ClientName: "Demo"})

	got, _ := repo.GetByClientID(ctx, "demo")
	got.ClientName = "Mutated"

	again, _ := repo.GetByClientID(ctx, "demo")
	if again.ClientName != "Demo" {
		t.Error("stored record must not observe reader mutations")
	}
}
