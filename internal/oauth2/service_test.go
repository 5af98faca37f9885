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

package oauth2

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trustgate/trustgate/internal/audit"
)

// Mock repos

type mockClientRepo struct {
	clients map[string]*Client
}

func (m *mockClientRepo) Create(ctx context.Context, client *Client) error {
	if _, ok := m.clients[client.ClientID]; ok {
		return ErrClientAlreadyExists
	}
	m.clients[client.ClientID] = client
	return nil
}

func (m *mockClientRepo) GetByClientID(ctx context.Context, clientID string) (*Client, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return c, nil
}

type mockCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*AuthorizationCode
}

func (m *mockCodeRepo) Create(ctx context.Context, code *AuthorizationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code.Code] = code
	return nil
}

func (m *mockCodeRepo) Consume(ctx context.Context, code string) (*AuthorizationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	if c.IsUsed {
		return c, ErrCodeAlreadyUsed
	}
	c.IsUsed = true
	return c, nil
}

func (m *mockCodeRepo) DeleteExpired(ctx context.Context) error { return nil }

type mockAccessRepo struct {
	mu     sync.Mutex
	tokens map[string]*AccessToken
}

func (m *mockAccessRepo) Create(ctx context.Context, token *AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *mockAccessRepo) GetByTokenHash(ctx context.Context, hash string) (*AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

func (m *mockAccessRepo) Revoke(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok {
		t.IsRevoked = true
	}
	return nil
}

func (m *mockAccessRepo) RevokeByCodeID(ctx context.Context, codeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.CodeID == codeID {
			t.IsRevoked = true
		}
	}
	return nil
}

func (m *mockAccessRepo) DeleteExpired(ctx context.Context) error { return nil }

type mockRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func (m *mockRefreshRepo) Create(ctx context.Context, token *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *mockRefreshRepo) GetByTokenHash(ctx context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

func (m *mockRefreshRepo) Rotate(ctx context.Context, oldHash string, next *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tokens[oldHash]
	if !ok {
		return ErrTokenNotFound
	}
	if old.IsRevoked || old.ReplacedBy != "" {
		return ErrTokenReplaced
	}
	old.ReplacedBy = next.ID
	m.tokens[next.TokenHash] = next
	return nil
}

func (m *mockRefreshRepo) Revoke(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok {
		t.IsRevoked = true
	}
	return nil
}

func (m *mockRefreshRepo) RevokeChain(ctx context.Context, chainID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.RotationChainID == chainID {
			t.IsRevoked = true
		}
	}
	return nil
}

func (m *mockRefreshRepo) RevokeByCodeID(ctx context.Context, codeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chains := map[string]bool{}
	for _, t := range m.tokens {
		if t.CodeID == codeID {
			chains[t.RotationChainID] = true
		}
	}
	for _, t := range m.tokens {
		if chains[t.RotationChainID] {
			t.IsRevoked = true
		}
	}
	return nil
}

func (m *mockRefreshRepo) DeleteExpired(ctx context.Context) error { return nil }

type mockIDTokenIssuer struct {
	captured IDTokenRequest
}

func (m *mockIDTokenIssuer) IssueIDToken(ctx context.Context, req IDTokenRequest) (string, error) {
	m.captured = req
	return "mock-id-token", nil
}

type mockMFAGate struct {
	required bool
}

func (m *mockMFAGate) Required(ctx context.Context, userID string) (bool, error) {
	return m.required, nil
}

func newTestService(gate MFAGate) (*Service, *mockIDTokenIssuer) {
	issuer := &mockIDTokenIssuer{}
	s := NewService(
		&mockClientRepo{clients: make(map[string]*Client)},
		&mockCodeRepo{codes: make(map[string]*AuthorizationCode)},
		&mockAccessRepo{tokens: make(map[string]*AccessToken)},
		&mockRefreshRepo{tokens: make(map[string]*RefreshToken)},
		audit.NewSlogLogger(),
		issuer,
		nil,
		gate,
		Config{
			Issuer:                  "https://auth.example",
			AccessTokenTTL:          time.Hour,
			RefreshTokenAbsoluteTTL: 30 * 24 * time.Hour,
			CodeTTL:                 5 * time.Minute,
			RequirePKCEForPublic:    true,
		},
	)
	return s, issuer
}

func registerDemoClient(t *testing.T, s *Service, secret string) *Client {
	t.Helper()
	client := &Client{
		ClientID:      "demo",
		ClientName:    "Demo App",
		RedirectURIs:  []string{"https://app/cb"},
		AllowedScopes: []string{"openid", "profile", "email", "read"},
		GrantTypes:    []string{GrantAuthorizationCode, GrantRefreshToken, GrantClientCredentials},
	}
	if err := s.RegisterClient(context.Background(), client, secret); err != nil {
		t.Fatalf("register client: %v", err)
	}
	return client
}

// Literal PKCE pair from RFC 7636 Appendix B.
const (
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func authorizeAndGetCode(t *testing.T, s *Service, scope string) *AuthorizationCode {
	t.Helper()
	ctx := context.Background()

	req := &AuthorizeRequest{
		ClientID:            "demo",
		RedirectURI:         "https://app/cb",
		ResponseType:        "code",
		Scope:               scope,
		State:               "s",
		Nonce:               "nonce-123",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: PKCEMethodS256,
	}

	client, err := s.ResolveClient(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		t.Fatalf("resolve client: %v", err)
	}
	if oe := s.ValidateAuthorization(client, req); oe != nil {
		t.Fatalf("validate authorization: %v", oe)
	}

	code, err := s.CreateAuthorizationCode(ctx, req, "user-123", false)
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	return code
}

// TestPurpose: Validates the full authorization-code + PKCE (S256) exchange.
// Scope: Unit Test
// Security: RFC 6749 Section 4.1.3, RFC 7636 Section 4.6
// Expected: Access, refresh and ID tokens are issued; the ID token request
// carries the nonce and the raw access token for at_hash.
func TestOAuth2_Service_ExchangeCode_Success(t *testing.T) {
	s, issuer := newTestService(nil)
	registerDemoClient(t, s, "secret-1")
	code := authorizeAndGetCode(t, s, "openid profile email")

	ctx := context.Background()
	client, err := s.AuthenticateClient(ctx, "demo", "secret-1")
	if err != nil {
		t.Fatalf("authenticate client: %v", err)
	}

	res, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	if res.AccessToken == "" {
		t.Error("access token missing")
	}
	if res.RefreshToken == "" {
		t.Error("refresh token missing")
	}
	if res.IDToken != "mock-id-token" {
		t.Errorf("expected mock-id-token, got %s", res.IDToken)
	}
	if res.TokenType != "Bearer" {
		t.Errorf("expected Bearer, got %s", res.TokenType)
	}
	if res.Scope != "openid profile email" {
		t.Errorf("unexpected scope %q", res.Scope)
	}
	if res.ExpiresIn != 3600 {
		t.Errorf("expected expires_in 3600, got %d", res.ExpiresIn)
	}

	if issuer.captured.Nonce != "nonce-123" {
		t.Errorf("expected nonce-123, got %s", issuer.captured.Nonce)
	}
	if issuer.captured.AccessToken != res.AccessToken {
		t.Error("id token request did not carry the raw access token")
	}
	if issuer.captured.ClientID != "demo" {
		t.Errorf("expected aud demo, got %s", issuer.captured.ClientID)
	}
}

// TestPurpose: Validates the code single-use invariant and the replay
// compensation: the second redemption fails and revokes derived tokens.
// Scope: Unit Test
// Security: RFC 6749 Section 4.1.2 (replay defence)
func TestOAuth2_Service_CodeReplay_RevokesDerivedTokens(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")
	code := authorizeAndGetCode(t, s, "openid")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	grant := AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	}

	res, err := s.Exchange(ctx, client, grant)
	if err != nil {
		t.Fatalf("first exchange failed: %v", err)
	}

	// Second identical exchange must fail...
	_, err = s.Exchange(ctx, client, grant)
	oe, ok := err.(*Error)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected invalid_grant, got %v", err)
	}

	// ...and everything minted from the code is dead.
	if _, err := s.ValidateAccessToken(ctx, res.AccessToken); err != ErrTokenRevoked {
		t.Errorf("expected derived access token revoked, got %v", err)
	}
	if resp := s.Introspect(ctx, res.RefreshToken); resp.Active {
		t.Error("expected derived refresh token inactive")
	}
}

// TestPurpose: Validates PKCE soundness: a wrong verifier fails the
// exchange and still consumes the code.
// Scope: Unit Test
// Security: RFC 7636 Section 4.6
func TestOAuth2_Service_PKCEMismatch_ConsumesCode(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")
	code := authorizeAndGetCode(t, s, "openid")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	// 43 valid characters that do not satisfy the stored challenge.
	wrong := "wrong-wrong-wrong-wrong-wrong-wrong-wrong-w"
	_, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: wrong,
	})
	oe, ok := err.(*Error)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected invalid_grant, got %v", err)
	}

	// The code is consumed: the correct verifier no longer helps.
	_, err = s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	oe, ok = err.(*Error)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected invalid_grant on consumed code, got %v", err)
	}
}

// TestPurpose: Validates redirect_uri and client binding of a code.
// Scope: Unit Test
func TestOAuth2_Service_CodeBinding(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")
	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	code := authorizeAndGetCode(t, s, "openid")
	_, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/other",
		CodeVerifier: testVerifier,
	})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected invalid_grant for redirect mismatch, got %v", err)
	}
}

// TestPurpose: Validates the client_credentials grant: no subject, no
// refresh token, no id_token.
// Scope: Unit Test
// Security: RFC 6749 Section 4.4
func TestOAuth2_Service_ClientCredentials(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	res, err := s.Exchange(ctx, client, ClientCredentialsGrant{Scope: "read"})
	if err != nil {
		t.Fatalf("client_credentials failed: %v", err)
	}

	if res.AccessToken == "" {
		t.Error("access token missing")
	}
	if res.RefreshToken != "" {
		t.Error("client_credentials must not issue a refresh token")
	}
	if res.IDToken != "" {
		t.Error("client_credentials must not issue an id_token")
	}
	if res.Scope != "read" {
		t.Errorf("unexpected scope %q", res.Scope)
	}

	// Disallowed scope fails.
	_, err = s.Exchange(ctx, client, ClientCredentialsGrant{Scope: "admin"})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrInvalidScope {
		t.Fatalf("expected invalid_scope, got %v", err)
	}
}

// TestPurpose: Validates refresh rotation and the chain-revocation replay
// defence: reusing a rotated token kills the entire chain.
// Scope: Unit Test
// Security: refresh token rotation (RFC 6749 Section 6, BCP)
func TestOAuth2_Service_RefreshRotationAndReplay(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")
	code := authorizeAndGetCode(t, s, "openid profile")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	first, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	// Rotate once.
	second, err := s.Exchange(ctx, client, RefreshTokenGrant{RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if second.RefreshToken == "" || second.RefreshToken == first.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	// Replay the original token: invalid_grant and the chain dies.
	_, err = s.Exchange(ctx, client, RefreshTokenGrant{RefreshToken: first.RefreshToken})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected invalid_grant on replay, got %v", err)
	}

	_, err = s.Exchange(ctx, client, RefreshTokenGrant{RefreshToken: second.RefreshToken})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected chain revocation to kill the successor, got %v", err)
	}
}

// TestPurpose: Validates scope monotonicity on refresh: narrowing is
// allowed, widening is rejected.
// Scope: Unit Test
func TestOAuth2_Service_RefreshScopeNarrowing(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")
	code := authorizeAndGetCode(t, s, "openid profile")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	first, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	narrowed, err := s.Exchange(ctx, client, RefreshTokenGrant{
		RefreshToken: first.RefreshToken,
		Scope:        "openid",
	})
	if err != nil {
		t.Fatalf("narrowing refresh failed: %v", err)
	}
	if narrowed.Scope != "openid" {
		t.Errorf("expected narrowed scope, got %q", narrowed.Scope)
	}

	// Widening back is rejected.
	_, err = s.Exchange(ctx, client, RefreshTokenGrant{
		RefreshToken: narrowed.RefreshToken,
		Scope:        "openid profile email",
	})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrInvalidScope {
		t.Fatalf("expected invalid_scope on widening, got %v", err)
	}
}

// TestPurpose: Validates introspection of live and revoked tokens. A dead
// token answers active=false with no identifying fields.
// Scope: Unit Test
// Security: RFC 7662 Section 2.2
func TestOAuth2_Service_IntrospectionAndRevocation(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")
	code := authorizeAndGetCode(t, s, "openid")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	res, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	live := s.Introspect(ctx, res.AccessToken)
	if !live.Active || live.Sub != "user-123" || live.ClientID != "demo" {
		t.Errorf("unexpected live introspection %+v", live)
	}

	if err := s.Revoke(ctx, client, res.AccessToken); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	dead := s.Introspect(ctx, res.AccessToken)
	if dead.Active {
		t.Error("expected inactive after revocation")
	}
	if dead.Sub != "" || dead.Scope != "" || dead.ClientID != "" || dead.Exp != 0 {
		t.Errorf("inactive introspection leaked fields: %+v", dead)
	}

	// Revoking again succeeds (RFC 7009).
	if err := s.Revoke(ctx, client, res.AccessToken); err != nil {
		t.Errorf("second revocation should succeed, got %v", err)
	}

	// Unknown token revocation succeeds too.
	if err := s.Revoke(ctx, client, "no-such-token"); err != nil {
		t.Errorf("unknown token revocation should succeed, got %v", err)
	}
}

// TestPurpose: Validates client authentication: bad secrets and unknown
// clients fail identically; public clients reject presented secrets.
// Scope: Unit Test
// Security: RFC 6749 Section 2.3.1, constant-time comparison
func TestOAuth2_Service_AuthenticateClient(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")

	public := &Client{
		ClientID:      "spa",
		RedirectURIs:  []string{"https://spa/cb"},
		AllowedScopes: []string{"openid"},
		GrantTypes:    []string{GrantAuthorizationCode},
	}
	if err := s.RegisterClient(context.Background(), public, ""); err != nil {
		t.Fatalf("register public client: %v", err)
	}

	ctx := context.Background()

	if _, err := s.AuthenticateClient(ctx, "demo", "wrong"); err == nil {
		t.Error("expected failure for wrong secret")
	}
	badSecret, _ := s.AuthenticateClient(ctx, "demo", "wrong")
	unknown, _ := s.AuthenticateClient(ctx, "ghost", "secret-1")
	if badSecret != nil || unknown != nil {
		t.Error("failures must not return a client")
	}

	if _, err := s.AuthenticateClient(ctx, "spa", ""); err != nil {
		t.Errorf("public client should authenticate with empty secret: %v", err)
	}
	if _, err := s.AuthenticateClient(ctx, "spa", "anything"); err == nil {
		t.Error("public client must reject a presented secret")
	}
}

// TestPurpose: Validates the authorization request validation order and
// error dispositions.
// Scope: Unit Test
// Security: RFC 6749 Section 4.1.1 / 3.1.2.4
func TestOAuth2_Service_ValidateAuthorization(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")

	public := &Client{
		ClientID:      "spa",
		RedirectURIs:  []string{"https://spa/cb"},
		AllowedScopes: []string{"openid"},
		GrantTypes:    []string{GrantAuthorizationCode},
	}
	if err := s.RegisterClient(context.Background(), public, ""); err != nil {
		t.Fatalf("register public client: %v", err)
	}

	ctx := context.Background()

	// Unknown client and unregistered redirect_uri never reach the
	// redirectable phase.
	if _, err := s.ResolveClient(ctx, "ghost", "https://app/cb"); err == nil {
		t.Error("expected failure for unknown client")
	}
	if _, err := s.ResolveClient(ctx, "demo", "https://evil/cb"); err == nil {
		t.Error("expected failure for unregistered redirect_uri")
	}

	client, err := s.ResolveClient(ctx, "demo", "https://app/cb")
	if err != nil {
		t.Fatalf("resolve client: %v", err)
	}

	if oe := s.ValidateAuthorization(client, &AuthorizeRequest{ResponseType: "token"}); oe == nil || oe.Code != ErrUnsupportedResponseType {
		t.Errorf("expected unsupported_response_type, got %v", oe)
	}
	if oe := s.ValidateAuthorization(client, &AuthorizeRequest{ResponseType: "code", Scope: "admin"}); oe == nil || oe.Code != ErrInvalidScope {
		t.Errorf("expected invalid_scope, got %v", oe)
	}
	if oe := s.ValidateAuthorization(client, &AuthorizeRequest{ResponseType: "code", CodeChallenge: "x", CodeChallengeMethod: "S512"}); oe == nil || oe.Code != ErrInvalidRequest {
		t.Errorf("expected invalid_request for bad method, got %v", oe)
	}

	// Public clients must send a challenge.
	spa, _ := s.ResolveClient(ctx, "spa", "https://spa/cb")
	if oe := s.ValidateAuthorization(spa, &AuthorizeRequest{ResponseType: "code", Scope: "openid"}); oe == nil || oe.Code != ErrInvalidRequest {
		t.Errorf("expected invalid_request for missing challenge, got %v", oe)
	}
}

// TestPurpose: Validates the MFA step-up gate at the token endpoint.
// Scope: Unit Test
func TestOAuth2_Service_MFAGate(t *testing.T) {
	gate := &mockMFAGate{required: true}
	s, _ := newTestService(gate)
	registerDemoClient(t, s, "secret-1")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	// Code minted without an MFA assertion: step-up required.
	code := authorizeAndGetCode(t, s, "openid")
	_, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrMFARequired {
		t.Fatalf("expected mfa_required, got %v", err)
	}

	// Code minted after the login collaborator consumed a challenge.
	req := &AuthorizeRequest{
		ClientID:            "demo",
		RedirectURI:         "https://app/cb",
		ResponseType:        "code",
		Scope:               "openid",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: PKCEMethodS256,
	}
	verified, err := s.CreateAuthorizationCode(ctx, req, "user-123", true)
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	if _, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         verified.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	}); err != nil {
		t.Fatalf("expected success with MFA assertion, got %v", err)
	}
}

// TestPurpose: Validates code expiry boundary handling.
// Scope: Unit Test
func TestOAuth2_Service_ExpiredCode(t *testing.T) {
	s, _ := newTestService(nil)
	registerDemoClient(t, s, "secret-1")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	code := authorizeAndGetCode(t, s, "openid")
	code.ExpiresAt = time.Now().Add(-time.Second)

	_, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected invalid_grant for expired code, got %v", err)
	}
}

// TestPurpose: Validates that a grant type outside the client's
// registration is rejected before grant processing.
// Scope: Unit Test
func TestOAuth2_Service_DisallowedGrant(t *testing.T) {
	s, _ := newTestService(nil)
	client := &Client{
		ClientID:      "codeonly",
		RedirectURIs:  []string{"https://app/cb"},
		AllowedScopes: []string{"openid"},
		GrantTypes:    []string{GrantAuthorizationCode},
	}
	if err := s.RegisterClient(context.Background(), client, "secret-2"); err != nil {
		t.Fatalf("register client: %v", err)
	}

	ctx := context.Background()
	authed, _ := s.AuthenticateClient(ctx, "codeonly", "secret-2")
	_, err := s.Exchange(ctx, authed, ClientCredentialsGrant{})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrUnauthorizedClient {
		t.Fatalf("expected unauthorized_client, got %v", err)
	}
}

// TestPurpose: Validates the absolute-expiry boundary of refresh tokens:
// rotation never extends the chain lifetime and an expired token fails.
// Scope: Unit Test
func TestOAuth2_Service_RefreshAbsoluteExpiry(t *testing.T) {
	refreshRepo := &mockRefreshRepo{tokens: make(map[string]*RefreshToken)}
	s := NewService(
		&mockClientRepo{clients: make(map[string]*Client)},
		&mockCodeRepo{codes: make(map[string]*AuthorizationCode)},
		&mockAccessRepo{tokens: make(map[string]*AccessToken)},
		refreshRepo,
		audit.NewSlogLogger(),
		nil,
		nil,
		nil,
		Config{AccessTokenTTL: time.Hour, RefreshTokenAbsoluteTTL: time.Hour, CodeTTL: time.Minute},
	)
	registerDemoClient(t, s, "secret-1")

	ctx := context.Background()
	client, _ := s.AuthenticateClient(ctx, "demo", "secret-1")

	code := authorizeAndGetCode(t, s, "openid")
	res, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	// Force the chain past its absolute expiry.
	for _, rt := range refreshRepo.tokens {
		rt.ExpiresAt = time.Now().Add(-time.Second)
	}

	_, err = s.Exchange(ctx, client, RefreshTokenGrant{RefreshToken: res.RefreshToken})
	if oe, ok := err.(*Error); !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected invalid_grant past absolute expiry, got %v", err)
	}

	// Rotation preserves the original absolute expiry on the successor.
	code2 := authorizeAndGetCode(t, s, "openid")
	res2, err := s.Exchange(ctx, client, AuthorizationCodeGrant{
		Code:         code2.Code,
		RedirectURI:  "https://app/cb",
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	var originalExpiry time.Time
	for _, rt := range refreshRepo.tokens {
		if hashToken(res2.RefreshToken) == rt.TokenHash {
			originalExpiry = rt.ExpiresAt
		}
	}

	rotated, err := s.Exchange(ctx, client, RefreshTokenGrant{RefreshToken: res2.RefreshToken})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	for _, rt := range refreshRepo.tokens {
		if hashToken(rotated.RefreshToken) == rt.TokenHash && !rt.ExpiresAt.Equal(originalExpiry) {
			t.Error("rotation must preserve the absolute expiry")
		}
	}
}
