package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/trustgate/trustgate/internal/oauth2"
)

// AuthorizationCodeRepository implements oauth2.AuthorizationCodeRepository
type AuthorizationCodeRepository struct {
	db *DB
}

// NewAuthorizationCodeRepository creates a new authorization code repository
func NewAuthorizationCodeRepository(db *DB) *AuthorizationCodeRepository {
	return &AuthorizationCodeRepository{db: db}
}

// Create creates a new authorization code
func (r *AuthorizationCodeRepository) Create(ctx context.Context, code *oauth2.AuthorizationCode) error {
	var usedAt sql.NullTime
	if code.UsedAt != nil {
		usedAt = sql.NullTime{Time: *code.UsedAt, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO authorization_codes (
			id, code, client_id, user_id,
			redirect_uri, scope, state, nonce,
			code_challenge, code_challenge_method, mfa_verified,
			auth_time, expires_at, used_at, is_used, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		code.ID, code.Code, code.ClientID, code.UserID,
		code.RedirectURI, code.Scope, code.State, code.Nonce,
		code.CodeChallenge, code.CodeChallengeMethod, code.MFAVerified,
		code.AuthTime, code.ExpiresAt, usedAt, code.IsUsed, code.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create authorization code: %w", err)
	}

	return nil
}

// Consume atomically transitions the code fresh -> consumed via a
// conditional update. The WHERE is_used = FALSE guard makes concurrent
// redemptions resolve to exactly one success.
func (r *AuthorizationCodeRepository) Consume(ctx context.Context, codeStr string) (*oauth2.AuthorizationCode, error) {
	var code oauth2.AuthorizationCode
	var usedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, `
		UPDATE authorization_codes SET is_used = TRUE, used_at = $2
		WHERE code = $1 AND is_used = FALSE
		RETURNING
			id, code, client_id, user_id,
			redirect_uri, scope, state, nonce,
			code_challenge, code_challenge_method, mfa_verified,
			auth_time, expires_at, used_at, is_used, created_at
	`, codeStr, time.Now()).Scan(
		&code.ID, &code.Code, &code.ClientID, &code.UserID,
		&code.RedirectURI, &code.Scope, &code.State, &code.Nonce,
		&code.CodeChallenge, &code.CodeChallengeMethod, &code.MFAVerified,
		&code.AuthTime, &code.ExpiresAt, &usedAt, &code.IsUsed, &code.CreatedAt,
	)

	if err == nil {
		if usedAt.Valid {
			code.UsedAt = &usedAt.Time
		}
		return &code, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	// Either unknown or already consumed; distinguish so a replay can
	// revoke the tokens derived from this code.
	err = r.db.pool.QueryRow(ctx, `
		SELECT
			id, code, client_id, user_id,
			redirect_uri, scope, state, nonce,
			code_challenge, code_challenge_method, mfa_verified,
			auth_time, expires_at, used_at, is_used, created_at
		FROM authorization_codes
		WHERE code = $1
	`, codeStr).Scan(
		&code.ID, &code.Code, &code.ClientID, &code.UserID,
		&code.RedirectURI, &code.Scope, &code.State, &code.Nonce,
		&code.CodeChallenge, &code.CodeChallengeMethod, &code.MFAVerified,
		&code.AuthTime, &code.ExpiresAt, &usedAt, &code.IsUsed, &code.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, oauth2.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get authorization code: %w", err)
	}

	if usedAt.Valid {
		code.UsedAt = &usedAt.Time
	}
	return &code, oauth2.ErrCodeAlreadyUsed
}

// DeleteExpired deletes all expired authorization codes
func (r *AuthorizationCodeRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM authorization_codes WHERE expires_at < $1
	`, time.Now())

	if err != nil {
		return fmt.Errorf("failed to delete expired codes: %w", err)
	}

	return nil
}
