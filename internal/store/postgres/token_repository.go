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

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/trustgate/trustgate/internal/oauth2"
)

// AccessTokenRepository implements oauth2.AccessTokenRepository
type AccessTokenRepository struct {
	db *DB
}

// NewAccessTokenRepository creates a new access token repository
func NewAccessTokenRepository(db *DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// Create creates a new access token
func (r *AccessTokenRepository) Create(ctx context.Context, token *oauth2.AccessToken) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO access_tokens (
			id, token_hash, client_id, user_id, scope, token_type,
			code_id, refresh_token_id, expires_at, is_revoked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		token.ID, token.TokenHash, token.ClientID, token.UserID, token.Scope, token.TokenType,
		token.CodeID, token.RefreshTokenID, token.ExpiresAt, token.IsRevoked, token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves an access token
func (r *AccessTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*oauth2.AccessToken, error) {
	var token oauth2.AccessToken
	var revokedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT
			id, token_hash, client_id, user_id, scope, token_type,
			code_id, refresh_token_id, expires_at, revoked_at, is_revoked, created_at
		FROM access_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&token.ID, &token.TokenHash, &token.ClientID, &token.UserID, &token.Scope, &token.TokenType,
		&token.CodeID, &token.RefreshTokenID, &token.ExpiresAt, &revokedAt, &token.IsRevoked, &token.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, oauth2.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}

	return &token, nil
}

// Revoke revokes an access token
func (r *AccessTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE access_tokens SET is_revoked = TRUE, revoked_at = $2
		WHERE token_hash = $1 AND is_revoked = FALSE
	`, tokenHash, time.Now())

	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}

	return nil
}

// RevokeByCodeID revokes every access token derived from a code
func (r *AccessTokenRepository) RevokeByCodeID(ctx context.Context, codeID string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE access_tokens SET is_revoked = TRUE, revoked_at = $2
		WHERE code_id = $1 AND is_revoked = FALSE
	`, codeID, time.Now())

	if err != nil {
		return fmt.Errorf("failed to revoke access tokens by code: %w", err)
	}

	return nil
}

// DeleteExpired deletes all expired access tokens
func (r *AccessTokenRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM access_tokens WHERE expires_at < $1
	`, time.Now())

	if err != nil {
		return fmt.Errorf("failed to delete expired access tokens: %w", err)
	}

	return nil
}

// RefreshTokenRepository implements oauth2.RefreshTokenRepository
type RefreshTokenRepository struct {
	db *DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create creates a new refresh token
func (r *RefreshTokenRepository) Create(ctx context.Context, token *oauth2.RefreshToken) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, token_hash, client_id, user_id, scope, code_id,
			rotation_chain_id, replaced_by, expires_at, is_revoked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		token.ID, token.TokenHash, token.ClientID, token.UserID, token.Scope, token.CodeID,
		token.RotationChainID, token.ReplacedBy, token.ExpiresAt, token.IsRevoked, token.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves a refresh token
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*oauth2.RefreshToken, error) {
	var token oauth2.RefreshToken
	var revokedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		SELECT
			id, token_hash, client_id, user_id, scope, code_id,
			rotation_chain_id, replaced_by, expires_at, revoked_at, is_revoked, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&token.ID, &token.TokenHash, &token.ClientID, &token.UserID, &token.Scope, &token.CodeID,
		&token.RotationChainID, &token.ReplacedBy, &token.ExpiresAt, &revokedAt, &token.IsRevoked, &token.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, oauth2.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}

	return &token, nil
}

// Rotate links the old token to its successor inside a transaction. The
// conditional update on replaced_by and is_revoked is the check-and-set:
// the losing side of a concurrent rotation gets ErrTokenReplaced.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldTokenHash string, next *oauth2.RefreshToken) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE refresh_tokens SET replaced_by = $2
		WHERE token_hash = $1 AND replaced_by = '' AND is_revoked = FALSE
	`, oldTokenHash, next.ID)
	if err != nil {
		return fmt.Errorf("failed to mark refresh token replaced: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_hash = $1)
		`, oldTokenHash).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check refresh token: %w", err)
		}
		if !exists {
			return oauth2.ErrTokenNotFound
		}
		return oauth2.ErrTokenReplaced
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, token_hash, client_id, user_id, scope, code_id,
			rotation_chain_id, replaced_by, expires_at, is_revoked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		next.ID, next.TokenHash, next.ClientID, next.UserID, next.Scope, next.CodeID,
		next.RotationChainID, next.ReplacedBy, next.ExpiresAt, next.IsRevoked, next.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store rotated refresh token: %w", err)
	}

	return tx.Commit(ctx)
}

// Revoke revokes a single refresh token
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2
		WHERE token_hash = $1 AND is_revoked = FALSE
	`, tokenHash, time.Now())

	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}

// RevokeChain revokes every token in a rotation chain
func (r *RefreshTokenRepository) RevokeChain(ctx context.Context, rotationChainID string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2
		WHERE rotation_chain_id = $1 AND is_revoked = FALSE
	`, rotationChainID, time.Now())

	if err != nil {
		return fmt.Errorf("failed to revoke rotation chain: %w", err)
	}

	return nil
}

// RevokeByCodeID revokes every refresh token chain derived from a code
func (r *RefreshTokenRepository) RevokeByCodeID(ctx context.Context, codeID string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2
		WHERE is_revoked = FALSE AND rotation_chain_id IN (
			SELECT rotation_chain_id FROM refresh_tokens WHERE code_id = $1
		)
	`, codeID, time.Now())

	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens by code: %w", err)
	}

	return nil
}

// DeleteExpired deletes all expired refresh tokens
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < $1
	`, time.Now())

	if err != nil {
		return fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	return nil
}
