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

package oidc

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/trustgate/trustgate/internal/identity"
	"github.com/trustgate/trustgate/internal/oauth2"
)

type stubUserRepo struct {
	users map[string]*identity.User
}

func (m *stubUserRepo) Create(ctx context.Context, user *identity.User) error { return nil }
func (m *stubUserRepo) GetByID(ctx context.Context, id string) (*identity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}
func (m *stubUserRepo) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return nil, identity.ErrUserNotFound
}
func (m *stubUserRepo) Update(ctx context.Context, user *identity.User) error { return nil }

func newTestOIDCService(t *testing.T, alg string) *Service {
	t.Helper()
	keys, err := NewKeystore(alg, 48*time.Hour)
	if err != nil {
		t.Fatalf("failed to create keystore: %v", err)
	}
	users := &stubUserRepo{users: map[string]*identity.User{
		"user-123": {
			ID:            "user-123",
			Email:         "u1@example.com",
			EmailVerified: true,
			Name:          "User One",
			Picture:       "https://img.example/u1.png",
		},
	}}
	return NewService("https://auth.example", keys, users, 5*time.Minute)
}

// TestPurpose: Validates ID token issuance: issuer and audience binding,
// nonce echo, auth_time, at_hash and the kid header.
// Scope: Unit Test
// Security: OIDC Core Section 2 / 3.1.3.6
func TestOIDC_Service_IssueIDToken(t *testing.T) {
	s := newTestOIDCService(t, AlgorithmRS256)

	authTime := time.Now().Add(-time.Minute)
	raw, err := s.IssueIDToken(context.Background(), oauth2.IDTokenRequest{
		UserID:      "user-123",
		ClientID:    "client-789",
		Nonce:       "random-nonce",
		Scope:       "openid",
		AuthTime:    authTime,
		AccessToken: "raw-access-token",
	})
	if err != nil {
		t.Fatalf("failed to issue ID token: %v", err)
	}

	claims, err := s.VerifyToken(raw)
	if err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}

	if claims["iss"] != "https://auth.example" {
		t.Errorf("unexpected iss %v", claims["iss"])
	}
	if claims["aud"] != "client-789" {
		t.Errorf("unexpected aud %v", claims["aud"])
	}
	if claims["sub"] != "user-123" {
		t.Errorf("unexpected sub %v", claims["sub"])
	}
	if claims["nonce"] != "random-nonce" {
		t.Errorf("nonce not echoed: %v", claims["nonce"])
	}
	if int64(claims["auth_time"].(float64)) != authTime.Unix() {
		t.Errorf("unexpected auth_time %v", claims["auth_time"])
	}

	// at_hash is the left half of SHA-256 over the raw access token.
	atHash := sha256.Sum256([]byte("raw-access-token"))
	want := base64.RawURLEncoding.EncodeToString(atHash[:16])
	if claims["at_hash"] != want {
		t.Errorf("unexpected at_hash %v", claims["at_hash"])
	}

	// iat <= now <= exp at issuance.
	now := time.Now().Unix()
	if int64(claims["iat"].(float64)) > now || int64(claims["exp"].(float64)) < now {
		t.Error("token not currently valid")
	}
}

// TestPurpose: Validates the JWT access-token profile payload.
// Scope: Unit Test
func TestOIDC_Service_SignAccessToken(t *testing.T) {
	s := newTestOIDCService(t, AlgorithmRS256)

	now := time.Now()
	raw, err := s.SignAccessToken("user-123", "client-789", "openid read", "jti-1", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to sign access token: %v", err)
	}

	claims, err := s.VerifyToken(raw)
	if err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}

	if claims["sub"] != "user-123" || claims["aud"] != "client-789" {
		t.Errorf("unexpected subject/audience: %v / %v", claims["sub"], claims["aud"])
	}
	if claims["scope"] != "openid read" {
		t.Errorf("unexpected scope %v", claims["scope"])
	}
	if claims["jti"] != "jti-1" {
		t.Errorf("unexpected jti %v", claims["jti"])
	}

	// Client-credentials tokens use the client as subject.
	raw, err = s.SignAccessToken("", "client-789", "read", "jti-2", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to sign access token: %v", err)
	}
	claims, err = s.VerifyToken(raw)
	if err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}
	if claims["sub"] != "client-789" {
		t.Errorf("unexpected sub for client token: %v", claims["sub"])
	}
}

// TestPurpose: Validates ES256 signing end to end.
// Scope: Unit Test
func TestOIDC_Service_ES256(t *testing.T) {
	s := newTestOIDCService(t, AlgorithmES256)

	raw, err := s.IssueIDToken(context.Background(), oauth2.IDTokenRequest{
		UserID:   "user-123",
		ClientID: "client-789",
		Scope:    "openid",
	})
	if err != nil {
		t.Fatalf("failed to issue ID token: %v", err)
	}
	if _, err := s.VerifyToken(raw); err != nil {
		t.Fatalf("failed to verify ES256 token: %v", err)
	}

	jwks := s.GetJWKS()
	if len(jwks.Keys) != 1 || jwks.Keys[0].Kty != "EC" || jwks.Keys[0].Crv != "P-256" {
		t.Errorf("unexpected JWKS %+v", jwks)
	}
}

// TestPurpose: Validates key rotation: the retired key stays resolvable
// inside the overlap window, so outstanding tokens still verify, and the
// JWKS publishes both keys.
// Scope: Unit Test
func TestOIDC_Service_KeyRotationOverlap(t *testing.T) {
	s := newTestOIDCService(t, AlgorithmRS256)

	before, err := s.IssueIDToken(context.Background(), oauth2.IDTokenRequest{
		UserID:   "user-123",
		ClientID: "client-789",
		Scope:    "openid",
	})
	if err != nil {
		t.Fatalf("failed to issue ID token: %v", err)
	}

	oldKid := s.keys.Active().Kid
	if err := s.keys.Rotate(); err != nil {
		t.Fatalf("rotation failed: %v", err)
	}
	if s.keys.Active().Kid == oldKid {
		t.Fatal("rotation did not change the active key")
	}

	// Outstanding token still verifies via the retired key.
	if _, err := s.VerifyToken(before); err != nil {
		t.Errorf("token signed before rotation should verify: %v", err)
	}

	jwks := s.GetJWKS()
	if len(jwks.Keys) != 2 {
		t.Fatalf("expected 2 published keys during overlap, got %d", len(jwks.Keys))
	}
	for _, k := range jwks.Keys {
		if k.N == "" || k.Kid == "" {
			t.Errorf("incomplete JWK %+v", k)
		}
	}
}

// TestPurpose: Validates discovery metadata endpoints and supported values.
// Scope: Unit Test
func TestOIDC_Service_Discovery(t *testing.T) {
	s := newTestOIDCService(t, AlgorithmRS256)
	meta := s.GetDiscoveryMetadata()

	if meta.Issuer != "https://auth.example" {
		t.Errorf("unexpected issuer %s", meta.Issuer)
	}
	if meta.AuthorizationEndpoint != "https://auth.example/oauth/authorize" {
		t.Errorf("unexpected authorization endpoint %s", meta.AuthorizationEndpoint)
	}
	if meta.TokenEndpoint != "https://auth.example/oauth/token" {
		t.Errorf("unexpected token endpoint %s", meta.TokenEndpoint)
	}
	if meta.JWKSURI != "https://auth.example/.well-known/jwks.json" {
		t.Errorf("unexpected jwks uri %s", meta.JWKSURI)
	}
	if len(meta.ResponseTypesSupported) != 1 || meta.ResponseTypesSupported[0] != "code" {
		t.Errorf("unexpected response types %v", meta.ResponseTypesSupported)
	}
	found := false
	for _, m := range meta.CodeChallengeMethodsSupported {
		if m == "S256" {
			found = true
		}
	}
	if !found {
		t.Error("S256 must be advertised")
	}
}
