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
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/trustgate/trustgate/internal/oauth2"
)

// ClientRepository implements oauth2.ClientRepository
type ClientRepository struct {
	db *DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create creates a new OAuth2 client
func (r *ClientRepository) Create(ctx context.Context, client *oauth2.Client) error {
	redirectURIs, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("failed to marshal redirect URIs: %w", err)
	}

	allowedScopes, err := json.Marshal(client.AllowedScopes)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed scopes: %w", err)
	}

	grantTypes, err := json.Marshal(client.GrantTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal grant types: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO oauth2_clients (
			id, client_id, client_secret_hash, client_name,
			redirect_uris, allowed_scopes, grant_types,
			token_endpoint_auth_method, is_trusted, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		client.ID, client.ClientID, client.ClientSecretHash, client.ClientName,
		redirectURIs, allowedScopes, grantTypes,
		client.TokenEndpointAuthMethod, client.IsTrusted, client.IsActive,
		client.CreatedAt, client.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

// GetByClientID retrieves a client by client_id
func (r *ClientRepository) GetByClientID(ctx context.Context, clientID string) (*oauth2.Client, error) {
	var client oauth2.Client
	var redirectURIsJSON, allowedScopesJSON, grantTypesJSON []byte

	err := r.db.pool.QueryRow(ctx, `
		SELECT
			id, client_id, client_secret_hash, client_name,
			redirect_uris, allowed_scopes, grant_types,
			token_endpoint_auth_method, is_trusted, is_active,
			created_at, updated_at
		FROM oauth2_clients
		WHERE client_id = $1
	`, clientID).Scan(
		&client.ID, &client.ClientID, &client.ClientSecretHash, &client.ClientName,
		&redirectURIsJSON, &allowedScopesJSON, &grantTypesJSON,
		&client.TokenEndpointAuthMethod, &client.IsTrusted, &client.IsActive,
		&client.CreatedAt, &client.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, oauth2.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if err := json.Unmarshal(redirectURIsJSON, &client.RedirectURIs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal redirect URIs: %w", err)
	}
	if err := json.Unmarshal(allowedScopesJSON, &client.AllowedScopes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allowed scopes: %w", err)
	}
	if err := json.Unmarshal(grantTypesJSON, &client.GrantTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant types: %w", err)
	}

	return &client, nil
}
