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

	"github.com/trustgate/trustgate/internal/oauth2"
)

// ClientRepository implements oauth2.ClientRepository
type ClientRepository struct {
	mu      sync.RWMutex
	clients map[string]*oauth2.Client
}

// NewClientRepository creates an empty client repository
func NewClientRepository() *ClientRepository {
	return &ClientRepository{clients: make(map[string]*oauth2.Client)}
}

// Create creates a new OAuth2 client
func (r *ClientRepository) Create(ctx context.Context, client *oauth2.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client.ClientID]; ok {
		return oauth2.ErrClientAlreadyExists
	}
	c := *client
	r.clients[client.ClientID] = &c
	return nil
}

// GetByClientID retrieves a client by client_id
func (r *ClientRepository) GetByClientID(ctx context.Context, clientID string) (*oauth2.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return nil, oauth2.ErrClientNotFound
	}
	c := *client
	return &c, nil
}

// AuthorizationCodeRepository implements oauth2.AuthorizationCodeRepository
type AuthorizationCodeRepository struct {
	mu    sync.Mutex
	codes map[string]*oauth2.AuthorizationCode
}

// NewAuthorizationCodeRepository creates an empty code repository
func NewAuthorizationCodeRepository() *AuthorizationCodeRepository {
	return &AuthorizationCodeRepository{codes: make(map[string]*oauth2.AuthorizationCode)}
}

// Create creates a new authorization code
func (r *AuthorizationCodeRepository) Create(ctx context.Context, code *oauth2.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *code
	r.codes[code.Code] = &c
	return nil
}

// Consume atomically transitions the code fresh -> consumed. The check and
// the set happen under one lock, so concurrent redemptions of the same code
// yield exactly one success.
func (r *AuthorizationCodeRepository) Consume(ctx context.Context, code string) (*oauth2.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.codes[code]
	if !ok {
		return nil, oauth2.ErrCodeNotFound
	}

	if record.IsUsed {
		c := *record
		return &c, oauth2.ErrCodeAlreadyUsed
	}

	now := time.Now()
	record.IsUsed = true
	record.UsedAt = &now

	c := *record
	return &c, nil
}

// DeleteExpired deletes all expired authorization codes
func (r *AuthorizationCodeRepository) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for key, code := range r.codes {
		if now.After(code.ExpiresAt) {
			delete(r.codes, key)
		}
	}
	return nil
}

// AccessTokenRepository implements oauth2.AccessTokenRepository
type AccessTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.AccessToken
}

// NewAccessTokenRepository creates an empty access token repository
func NewAccessTokenRepository() *AccessTokenRepository {
	return &AccessTokenRepository{tokens: make(map[string]*oauth2.AccessToken)}
}

// Create creates a new access token
func (r *AccessTokenRepository) Create(ctx context.Context, token *oauth2.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := *token
	r.tokens[token.TokenHash] = &t
	return nil
}

// GetByTokenHash retrieves an access token
func (r *AccessTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*oauth2.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenHash]
	if !ok {
		return nil, oauth2.ErrTokenNotFound
	}
	t := *token
	return &t, nil
}

// Revoke revokes an access token. Unknown and already revoked tokens are
// not errors (RFC 7009).
func (r *AccessTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenHash]
	if !ok || token.IsRevoked {
		return nil
	}

	now := time.Now()
	token.IsRevoked = true
	token.RevokedAt = &now
	return nil
}

// RevokeByCodeID revokes every access token derived from a code
func (r *AccessTokenRepository) RevokeByCodeID(ctx context.Context, codeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, token := range r.tokens {
		if token.CodeID == codeID && !token.IsRevoked {
			token.IsRevoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

// DeleteExpired deletes all expired access tokens
func (r *AccessTokenRepository) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for key, token := range r.tokens {
		if now.After(token.ExpiresAt) {
			delete(r.tokens, key)
		}
	}
	return nil
}

// RefreshTokenRepository implements oauth2.RefreshTokenRepository
type RefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.RefreshToken
}

// NewRefreshTokenRepository creates an empty refresh token repository
func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: make(map[string]*oauth2.RefreshToken)}
}

// Create creates a new refresh token
func (r *RefreshTokenRepository) Create(ctx context.Context, token *oauth2.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := *token
	r.tokens[token.TokenHash] = &t
	return nil
}

// GetByTokenHash retrieves a refresh token
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*oauth2.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenHash]
	if !ok {
		return nil, oauth2.ErrTokenNotFound
	}
	t := *token
	return &t, nil
}

// Rotate atomically replaces the old token with its successor. The replaced
// check and the link write happen under one lock; a concurrent rotation of
// the same token loses with ErrTokenReplaced.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldTokenHash string, next *oauth2.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.tokens[oldTokenHash]
	if !ok {
		return oauth2.ErrTokenNotFound
	}
	if old.IsRevoked || old.ReplacedBy != "" {
		return oauth2.ErrTokenReplaced
	}

	old.ReplacedBy = next.ID
	t := *next
	r.tokens[next.TokenHash] = &t
	return nil
}

// Revoke revokes a single refresh token
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenHash]
	if !ok || token.IsRevoked {
		return nil
	}

	now := time.Now()
	token.IsRevoked = true
	token.RevokedAt = &now
	return nil
}

// RevokeChain revokes every token in a rotation chain
func (r *RefreshTokenRepository) RevokeChain(ctx context.Context, rotationChainID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, token := range r.tokens {
		if token.RotationChainID == rotationChainID && !token.IsRevoked {
			token.IsRevoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

// RevokeByCodeID revokes every refresh token derived from a code, including
// rotated successors in their chains.
func (r *RefreshTokenRepository) RevokeByCodeID(ctx context.Context, codeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chains := map[string]bool{}
	for _, token := range r.tokens {
		if token.CodeID == codeID {
			chains[token.RotationChainID] = true
		}
	}

	now := time.Now()
	for _, token := range r.tokens {
		if chains[token.RotationChainID] && !token.IsRevoked {
			token.IsRevoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

// DeleteExpired deletes all expired refresh tokens
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for key, token := range r.tokens {
		if now.After(token.ExpiresAt) {
			delete(r.tokens, key)
		}
	}
	return nil
}
