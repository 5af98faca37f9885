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
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/trustgate/trustgate/internal/mfa"
)

// FactorRepository implements mfa.FactorRepository
type FactorRepository struct {
	db *DB
}

// NewFactorRepository creates a new factor repository
func NewFactorRepository(db *DB) *FactorRepository {
	return &FactorRepository{db: db}
}

// Create creates a new factor
func (r *FactorRepository) Create(ctx context.Context, factor *mfa.Factor) error {
	backupCodes, err := json.Marshal(factor.BackupCodes)
	if err != nil {
		return fmt.Errorf("failed to marshal backup codes: %w", err)
	}

	var lastUsedAt sql.NullTime
	if factor.LastUsedAt != nil {
		lastUsedAt = sql.NullTime{Time: *factor.LastUsedAt, Valid: true}
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO mfa_factors (
			id, user_id, kind, enabled, verified, secret, destination,
			backup_codes, created_at, last_used_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		factor.ID, factor.UserID, string(factor.Kind), factor.Enabled, factor.Verified,
		factor.Secret, factor.Destination, backupCodes, factor.CreatedAt, lastUsedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create factor: %w", err)
	}

	return nil
}

// GetByID retrieves a factor
func (r *FactorRepository) GetByID(ctx context.Context, id string) (*mfa.Factor, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, kind, enabled, verified, secret, destination,
			backup_codes, created_at, last_used_at
		FROM mfa_factors
		WHERE id = $1
	`, id)

	factor, err := scanFactor(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, mfa.ErrFactorNotFound
		}
		return nil, fmt.Errorf("failed to get factor: %w", err)
	}

	return factor, nil
}

// ListByUser retrieves all factors for a user
func (r *FactorRepository) ListByUser(ctx context.Context, userID string) ([]*mfa.Factor, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, kind, enabled, verified, secret, destination,
			backup_codes, created_at, last_used_at
		FROM mfa_factors
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list factors: %w", err)
	}
	defer rows.Close()

	var factors []*mfa.Factor
	for rows.Next() {
		factor, err := scanFactor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan factor: %w", err)
		}
		factors = append(factors, factor)
	}

	return factors, rows.Err()
}

// Update updates factor state
func (r *FactorRepository) Update(ctx context.Context, factor *mfa.Factor) error {
	backupCodes, err := json.Marshal(factor.BackupCodes)
	if err != nil {
		return fmt.Errorf("failed to marshal backup codes: %w", err)
	}

	var lastUsedAt sql.NullTime
	if factor.LastUsedAt != nil {
		lastUsedAt = sql.NullTime{Time: *factor.LastUsedAt, Valid: true}
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE mfa_factors
		SET enabled = $2, verified = $3, backup_codes = $4, last_used_at = $5
		WHERE id = $1
	`, factor.ID, factor.Enabled, factor.Verified, backupCodes, lastUsedAt)

	if err != nil {
		return fmt.Errorf("failed to update factor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return mfa.ErrFactorNotFound
	}

	return nil
}

// Delete removes a factor
func (r *FactorRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM mfa_factors WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete factor: %w", err)
	}

	return nil
}

func scanFactor(row pgx.Row) (*mfa.Factor, error) {
	var factor mfa.Factor
	var kind string
	var backupCodesJSON []byte
	var lastUsedAt sql.NullTime

	err := row.Scan(
		&factor.ID, &factor.UserID, &kind, &factor.Enabled, &factor.Verified,
		&factor.Secret, &factor.Destination, &backupCodesJSON, &factor.CreatedAt, &lastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	factor.Kind = mfa.FactorKind(kind)
	if err := json.Unmarshal(backupCodesJSON, &factor.BackupCodes); err != nil {
		return nil, err
	}
	if lastUsedAt.Valid {
		factor.LastUsedAt = &lastUsedAt.Time
	}

	return &factor, nil
}

// ChallengeRepository implements mfa.ChallengeRepository
type ChallengeRepository struct {
	db *DB
}

// NewChallengeRepository creates a new challenge repository
func NewChallengeRepository(db *DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// Create creates a new challenge
func (r *ChallengeRepository) Create(ctx context.Context, challenge *mfa.Challenge) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO mfa_challenges (
			id, user_id, factor_id, kind, code_hash,
			expires_at, attempts, max_attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		challenge.ID, challenge.UserID, challenge.FactorID, string(challenge.Kind), challenge.CodeHash,
		challenge.ExpiresAt, challenge.Attempts, challenge.MaxAttempts, challenge.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	return nil
}

// GetByID retrieves a challenge
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*mfa.Challenge, error) {
	var challenge mfa.Challenge
	var kind string

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, factor_id, kind, code_hash,
			expires_at, attempts, max_attempts, created_at
		FROM mfa_challenges
		WHERE id = $1
	`, id).Scan(
		&challenge.ID, &challenge.UserID, &challenge.FactorID, &kind, &challenge.CodeHash,
		&challenge.ExpiresAt, &challenge.Attempts, &challenge.MaxAttempts, &challenge.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, mfa.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	challenge.Kind = mfa.FactorKind(kind)
	return &challenge, nil
}

// IncrementAttempts atomically bumps the attempt counter via a conditional
// update; concurrent verifications each observe a distinct count.
func (r *ChallengeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int

	err := r.db.pool.QueryRow(ctx, `
		UPDATE mfa_challenges SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&attempts)

	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, mfa.ErrChallengeNotFound
		}
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}

	return attempts, nil
}

// Delete removes a challenge
func (r *ChallengeRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM mfa_challenges WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}

	return nil
}

// DeleteExpired deletes all expired challenges
func (r *ChallengeRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM mfa_challenges WHERE expires_at < $1
	`, time.Now())

	if err != nil {
		return fmt.Errorf("failed to delete expired challenges: %w", err)
	}

	return nil
}
