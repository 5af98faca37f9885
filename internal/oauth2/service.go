package oauth2

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustgate/trustgate/internal/audit"
)

// IDTokenIssuer is the hook into the OIDC signer. The access token is passed
// for at_hash computation.
type IDTokenIssuer interface {
	IssueIDToken(ctx context.Context, req IDTokenRequest) (string, error)
}

// IDTokenRequest carries the authentication event data an id_token asserts
type IDTokenRequest struct {
	UserID      string
	ClientID    string
	Nonce       string
	Scope       string
	AuthTime    time.Time
	AccessToken string
}

// AccessTokenSigner mints the JWT access-token profile. Implemented by the
// OIDC key manager; nil when the opaque profile is configured.
type AccessTokenSigner interface {
	SignAccessToken(userID, clientID, scope, jti string, issuedAt, expiresAt time.Time) (string, error)
}

// MFAGate reports whether a subject must present a second factor before
// credentials are issued. Implemented by the MFA orchestrator.
type MFAGate interface {
	Required(ctx context.Context, userID string) (bool, error)
}

// Config holds protocol configuration for the service
type Config struct {
	Issuer                  string
	AccessTokenFormat       string // "opaque" or "jwt"
	AccessTokenTTL          time.Duration
	RefreshTokenAbsoluteTTL time.Duration
	CodeTTL                 time.Duration
	RequirePKCEForPublic    bool
}

// Service implements the authorization and token endpoints: code issuance,
// the three supported grants, introspection and revocation.
type Service struct {
	clients     ClientRepository
	codes       AuthorizationCodeRepository
	accessRepo  AccessTokenRepository
	refreshRepo RefreshTokenRepository
	auditLogger audit.Logger
	idTokens    IDTokenIssuer
	signer      AccessTokenSigner
	mfaGate     MFAGate
	cfg         Config
}

// NewService creates a new OAuth2 service
func NewService(
	clients ClientRepository,
	codes AuthorizationCodeRepository,
	accessRepo AccessTokenRepository,
	refreshRepo RefreshTokenRepository,
	auditLogger audit.Logger,
	idTokens IDTokenIssuer,
	signer AccessTokenSigner,
	mfaGate MFAGate,
	cfg Config,
) *Service {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = time.Hour
	}
	if cfg.RefreshTokenAbsoluteTTL <= 0 {
		cfg.RefreshTokenAbsoluteTTL = 30 * 24 * time.Hour
	}
	if cfg.CodeTTL <= 0 || cfg.CodeTTL > 10*time.Minute {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.AccessTokenFormat == "" {
		cfg.AccessTokenFormat = "opaque"
	}

	return &Service{
		clients:     clients,
		codes:       codes,
		accessRepo:  accessRepo,
		refreshRepo: refreshRepo,
		auditLogger: auditLogger,
		idTokens:    idTokens,
		signer:      signer,
		mfaGate:     mfaGate,
		cfg:         cfg,
	}
}

// AuthorizeRequest represents an OAuth2 authorization request
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// GrantRequest is the tagged union of token endpoint grants. Dispatch in
// Exchange is exhaustive.
type GrantRequest interface {
	grantType() string
}

// AuthorizationCodeGrant redeems a single-use code (RFC 6749 Section 4.1.3)
type AuthorizationCodeGrant struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

func (AuthorizationCodeGrant) grantType() string { return GrantAuthorizationCode }

// ClientCredentialsGrant requests a token for the client itself
// (RFC 6749 Section 4.4)
type ClientCredentialsGrant struct {
	Scope string
}

func (ClientCredentialsGrant) grantType() string { return GrantClientCredentials }

// RefreshTokenGrant rotates a refresh token (RFC 6749 Section 6)
type RefreshTokenGrant struct {
	RefreshToken string
	Scope        string
}

func (RefreshTokenGrant) grantType() string { return GrantRefreshToken }

// TokenResponse represents an OAuth2 token response (RFC 6749 Section 5.1)
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// IntrospectionResponse represents an RFC 7662 Section 2.2 response. Inactive
// tokens carry active=false and nothing else.
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Sub       string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
}

// RegisterClient registers a new OAuth2 client. The caller supplies the
// plaintext secret and only its digest is stored; public clients pass an
// empty secret.
func (s *Service) RegisterClient(ctx context.Context, client *Client, secret string) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.ClientID == "" {
		client.ClientID = generateToken()
	}
	if secret != "" {
		client.ClientSecretHash = HashClientSecret(secret)
	}
	if len(client.GrantTypes) == 0 {
		client.GrantTypes = []string{GrantAuthorizationCode, GrantRefreshToken}
	}
	if client.TokenEndpointAuthMethod == "" {
		if client.IsPublic() {
			client.TokenEndpointAuthMethod = AuthMethodNone
		} else {
			client.TokenEndpointAuthMethod = AuthMethodBasic
		}
	}
	client.IsActive = true
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	client.UpdatedAt = time.Now()

	if err := s.clients.Create(ctx, client); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeClientCreated,
		ActorID:  client.ClientID,
		Resource: audit.ResourceClient,
		Metadata: map[string]any{"client_name": client.ClientName},
	})

	return nil
}

// ResolveClient performs the non-redirectable part of authorization request
// validation (RFC 6749 Section 4.1.1 steps that must render an error page):
// the client must exist and the redirect_uri must match exactly.
func (s *Service) ResolveClient(ctx context.Context, clientID, redirectURI string) (*Client, error) {
	client, err := s.clients.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, NewError(ErrInvalidRequest, "invalid client_id")
	}
	if !client.IsActive {
		return nil, NewError(ErrInvalidRequest, "invalid client_id")
	}
	if !client.ValidateRedirectURI(redirectURI) {
		return nil, NewError(ErrInvalidRequest, "invalid redirect_uri")
	}
	return client, nil
}

// ValidateAuthorization performs the redirectable validations of the
// authorization request. The caller delivers any returned error to the
// (already validated) redirect_uri.
func (s *Service) ValidateAuthorization(client *Client, req *AuthorizeRequest) *Error {
	if req.ResponseType != "code" {
		return NewError(ErrUnsupportedResponseType, "response_type must be 'code'")
	}

	if !client.AllowsGrant(GrantAuthorizationCode) {
		return NewError(ErrUnauthorizedClient, "")
	}

	if !client.ValidateScope(req.Scope) {
		return NewError(ErrInvalidScope, "")
	}

	// RFC 7636 Section 4.3: when a challenge is sent, the method must be
	// named and supported. Public clients must always send one.
	if req.CodeChallenge != "" {
		if !ValidPKCEMethod(req.CodeChallengeMethod) {
			return NewError(ErrInvalidRequest, "transform algorithm not supported")
		}
	} else if client.IsPublic() && s.cfg.RequirePKCEForPublic {
		return NewError(ErrInvalidRequest, "code_challenge is required")
	}

	return nil
}

// CreateAuthorizationCode mints a single-use code bound to the request and
// the authenticated subject (RFC 6749 Section 4.1.2). mfaVerified records
// whether the login collaborator already consumed an MFA challenge.
func (s *Service) CreateAuthorizationCode(ctx context.Context, req *AuthorizeRequest, userID string, mfaVerified bool) (*AuthorizationCode, error) {
	now := time.Now()
	code := &AuthorizationCode{
		ID:                  uuid.NewString(),
		Code:                generateToken(),
		ClientID:            req.ClientID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		MFAVerified:         mfaVerified,
		AuthTime:            now,
		ExpiresAt:           now.Add(s.cfg.CodeTTL),
		IsUsed:              false,
		CreatedAt:           now,
	}

	if err := s.codes.Create(ctx, code); err != nil {
		return nil, NewError(ErrServerError, "")
	}

	return code, nil
}

// AuthenticateClient validates client credentials (RFC 6749 Section 3.2.1).
// Unknown client and bad secret are indistinguishable to the caller. Public
// clients authenticate with an empty secret; their proof is the PKCE
// verifier checked during the grant.
func (s *Service) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	client, err := s.clients.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, NewError(ErrInvalidClient, "")
	}

	if !client.IsActive {
		return nil, NewError(ErrInvalidClient, "")
	}

	if client.IsPublic() {
		if clientSecret != "" {
			return nil, NewError(ErrInvalidClient, "")
		}
		return client, nil
	}

	if !secretDigestsMatch(HashClientSecret(clientSecret), client.ClientSecretHash) {
		return nil, NewError(ErrInvalidClient, "")
	}

	return client, nil
}

// Exchange dispatches a token request for an authenticated client
// (RFC 6749 Section 3.2)
func (s *Service) Exchange(ctx context.Context, client *Client, grant GrantRequest) (*TokenResponse, error) {
	if !client.AllowsGrant(grant.grantType()) {
		return nil, NewError(ErrUnauthorizedClient, "")
	}

	switch g := grant.(type) {
	case AuthorizationCodeGrant:
		return s.exchangeCode(ctx, client, g)
	case ClientCredentialsGrant:
		return s.clientCredentials(ctx, client, g)
	case RefreshTokenGrant:
		return s.refreshAccessToken(ctx, client, g)
	default:
		return nil, NewError(ErrUnsupportedGrantType, "")
	}
}

// exchangeCode redeems an authorization code (RFC 6749 Section 4.1.3)
func (s *Service) exchangeCode(ctx context.Context, client *Client, g AuthorizationCodeGrant) (*TokenResponse, error) {
	// Atomic consume: two concurrent redemptions observe exactly one
	// success. A consumed code presented again is a replay; everything
	// minted from it is revoked.
	code, err := s.codes.Consume(ctx, g.Code)
	switch {
	case err == ErrCodeAlreadyUsed:
		s.revokeDerived(ctx, code)
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeCodeReplayed,
			ActorID:  client.ClientID,
			Resource: audit.ResourceToken,
		})
		return nil, NewError(ErrInvalidGrant, "")
	case err != nil:
		return nil, NewError(ErrInvalidGrant, "")
	}

	if code.IsExpired() {
		return nil, NewError(ErrInvalidGrant, "")
	}

	if code.ClientID != client.ClientID {
		return nil, NewError(ErrInvalidGrant, "")
	}

	if code.RedirectURI != g.RedirectURI {
		return nil, NewError(ErrInvalidGrant, "")
	}

	// RFC 7636 Section 4.6
	if code.CodeChallenge != "" {
		if !VerifyPKCE(code.CodeChallenge, code.CodeChallengeMethod, g.CodeVerifier) {
			return nil, NewError(ErrInvalidGrant, "")
		}
	} else if g.CodeVerifier != "" {
		return nil, NewError(ErrInvalidGrant, "")
	}

	// Step-up gate: a subject with an enabled factor must have passed MFA
	// during authorization.
	if s.mfaGate != nil && !code.MFAVerified {
		required, err := s.mfaGate.Required(ctx, code.UserID)
		if err != nil {
			return nil, NewError(ErrServerError, "")
		}
		if required {
			return nil, NewError(ErrMFARequired, "")
		}
	}

	return s.mint(ctx, client, code.UserID, code.Scope, code, true)
}

// clientCredentials issues a token for the client itself (RFC 6749
// Section 4.4). No subject, no refresh token, no id_token.
func (s *Service) clientCredentials(ctx context.Context, client *Client, g ClientCredentialsGrant) (*TokenResponse, error) {
	if client.IsPublic() {
		return nil, NewError(ErrUnauthorizedClient, "")
	}

	if !client.ValidateScope(g.Scope) {
		return nil, NewError(ErrInvalidScope, "")
	}

	_, raw, err := s.mintAccess(ctx, client, "", g.Scope, "", "")
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		ActorID:  client.ClientID,
		Resource: audit.ResourceToken,
		Metadata: map[string]any{
			"client_id":  client.ClientID,
			"grant_type": GrantClientCredentials,
			"scope":      g.Scope,
		},
	})

	return &TokenResponse{
		AccessToken: raw,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.AccessTokenTTL.Seconds()),
		Scope:       g.Scope,
	}, nil
}

// refreshAccessToken rotates a refresh token (RFC 6749 Section 6). Reuse of
// a rotated or revoked token invalidates the whole chain.
func (s *Service) refreshAccessToken(ctx context.Context, client *Client, g RefreshTokenGrant) (*TokenResponse, error) {
	rt, err := s.refreshRepo.GetByTokenHash(ctx, hashToken(g.RefreshToken))
	if err != nil {
		return nil, NewError(ErrInvalidGrant, "")
	}

	if rt.ClientID != client.ClientID {
		return nil, NewError(ErrInvalidGrant, "")
	}

	if rt.IsRevoked || rt.IsReplaced() {
		// Replay of a non-active chain member.
		if err := s.refreshRepo.RevokeChain(ctx, rt.RotationChainID); err == nil {
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeRefreshReplayed,
				ActorID:  client.ClientID,
				Resource: audit.ResourceToken,
				Metadata: map[string]any{"rotation_chain_id": rt.RotationChainID},
			})
		}
		return nil, NewError(ErrInvalidGrant, "")
	}

	if rt.IsExpired() {
		return nil, NewError(ErrInvalidGrant, "")
	}

	// Scope may only narrow (RFC 6749 Section 6)
	scope := rt.Scope
	if g.Scope != "" {
		if !scopeSubset(g.Scope, rt.Scope) {
			return nil, NewError(ErrInvalidScope, "")
		}
		scope = g.Scope
	}

	// Rotation: the successor keeps the chain id and the absolute expiry.
	rawNext := generateToken()
	next := &RefreshToken{
		ID:              uuid.NewString(),
		TokenHash:       hashToken(rawNext),
		ClientID:        rt.ClientID,
		UserID:          rt.UserID,
		Scope:           scope,
		CodeID:          rt.CodeID,
		RotationChainID: rt.RotationChainID,
		ExpiresAt:       rt.ExpiresAt,
		CreatedAt:       time.Now(),
	}

	if err := s.refreshRepo.Rotate(ctx, rt.TokenHash, next); err != nil {
		if err == ErrTokenReplaced {
			// Lost a concurrent rotation race; the winner holds the
			// only active token, this presentation is a replay.
			_ = s.refreshRepo.RevokeChain(ctx, rt.RotationChainID)
			return nil, NewError(ErrInvalidGrant, "")
		}
		return nil, NewError(ErrServerError, "")
	}

	_, rawAccess, err := s.mintAccess(ctx, client, rt.UserID, scope, rt.CodeID, next.ID)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		ActorID:  rt.UserID,
		Resource: audit.ResourceToken,
		Metadata: map[string]any{
			"client_id":  client.ClientID,
			"grant_type": GrantRefreshToken,
			"scope":      scope,
		},
	})

	return &TokenResponse{
		AccessToken:  rawAccess,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: rawNext,
		Scope:        scope,
	}, nil
}

// mint issues the full credential set for a redeemed code
func (s *Service) mint(ctx context.Context, client *Client, userID, scope string, code *AuthorizationCode, withRefresh bool) (*TokenResponse, error) {
	var refreshRaw, refreshID string
	if withRefresh && client.AllowsGrant(GrantRefreshToken) {
		raw := generateToken()
		rt := &RefreshToken{
			ID:              uuid.NewString(),
			TokenHash:       hashToken(raw),
			ClientID:        client.ClientID,
			UserID:          userID,
			Scope:           scope,
			CodeID:          code.ID,
			RotationChainID: uuid.NewString(),
			ExpiresAt:       time.Now().Add(s.cfg.RefreshTokenAbsoluteTTL),
			CreatedAt:       time.Now(),
		}
		if err := s.refreshRepo.Create(ctx, rt); err != nil {
			return nil, NewError(ErrServerError, "")
		}
		refreshRaw = raw
		refreshID = rt.ID
	}

	_, rawAccess, err := s.mintAccess(ctx, client, userID, scope, code.ID, refreshID)
	if err != nil {
		return nil, err
	}

	var idToken string
	if s.idTokens != nil && containsScope(scope, ScopeOpenID) {
		idToken, err = s.idTokens.IssueIDToken(ctx, IDTokenRequest{
			UserID:      userID,
			ClientID:    client.ClientID,
			Nonce:       code.Nonce,
			Scope:       scope,
			AuthTime:    code.AuthTime,
			AccessToken: rawAccess,
		})
		if err != nil {
			return nil, NewError(ErrServerError, "")
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		ActorID:  userID,
		Resource: audit.ResourceToken,
		Metadata: map[string]any{
			"client_id":  client.ClientID,
			"grant_type": GrantAuthorizationCode,
			"scope":      scope,
			"has_rt":     refreshRaw != "",
			"has_it":     idToken != "",
		},
	})

	return &TokenResponse{
		AccessToken:  rawAccess,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: refreshRaw,
		IDToken:      idToken,
		Scope:        scope,
	}, nil
}

// mintAccess creates and stores one access token. The opaque profile returns
// a random string; the jwt profile returns a signed token. Both are stored
// by digest so revocation and introspection behave identically.
func (s *Service) mintAccess(ctx context.Context, client *Client, userID, scope, codeID, refreshTokenID string) (*AccessToken, string, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTokenTTL)

	var raw string
	if s.cfg.AccessTokenFormat == "jwt" && s.signer != nil {
		jti := uuid.NewString()
		signed, err := s.signer.SignAccessToken(userID, client.ClientID, scope, jti, now, expiresAt)
		if err != nil {
			return nil, "", NewError(ErrServerError, "")
		}
		raw = signed
	} else {
		raw = generateToken()
	}

	token := &AccessToken{
		ID:             uuid.NewString(),
		TokenHash:      hashToken(raw),
		ClientID:       client.ClientID,
		UserID:         userID,
		Scope:          scope,
		TokenType:      "Bearer",
		CodeID:         codeID,
		RefreshTokenID: refreshTokenID,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
	}

	if err := s.accessRepo.Create(ctx, token); err != nil {
		return nil, "", NewError(ErrServerError, "")
	}

	return token, raw, nil
}

// revokeDerived revokes every token minted from a replayed code
func (s *Service) revokeDerived(ctx context.Context, code *AuthorizationCode) {
	if code == nil {
		return
	}
	_ = s.accessRepo.RevokeByCodeID(ctx, code.ID)
	_ = s.refreshRepo.RevokeByCodeID(ctx, code.ID)
}

// ValidateAccessToken resolves a presented access token to its record.
// Expired, revoked and unknown tokens all fail.
func (s *Service) ValidateAccessToken(ctx context.Context, raw string) (*AccessToken, error) {
	token, err := s.accessRepo.GetByTokenHash(ctx, hashToken(raw))
	if err != nil {
		return nil, ErrTokenNotFound
	}

	if token.IsRevoked {
		return nil, ErrTokenRevoked
	}

	if token.IsExpired() {
		return nil, ErrTokenExpired
	}

	return token, nil
}

// Introspect implements RFC 7662 Section 2. Dead tokens answer active=false
// with no other fields.
func (s *Service) Introspect(ctx context.Context, raw string) *IntrospectionResponse {
	hash := hashToken(raw)

	if token, err := s.accessRepo.GetByTokenHash(ctx, hash); err == nil {
		if token.IsRevoked || token.IsExpired() {
			return &IntrospectionResponse{Active: false}
		}
		return &IntrospectionResponse{
			Active:    true,
			Scope:     token.Scope,
			ClientID:  token.ClientID,
			Sub:       token.UserID,
			TokenType: token.TokenType,
			Exp:       token.ExpiresAt.Unix(),
			Iat:       token.CreatedAt.Unix(),
		}
	}

	if rt, err := s.refreshRepo.GetByTokenHash(ctx, hash); err == nil {
		if rt.IsRevoked || rt.IsReplaced() || rt.IsExpired() {
			return &IntrospectionResponse{Active: false}
		}
		return &IntrospectionResponse{
			Active:    true,
			Scope:     rt.Scope,
			ClientID:  rt.ClientID,
			Sub:       rt.UserID,
			TokenType: "refresh_token",
			Exp:       rt.ExpiresAt.Unix(),
			Iat:       rt.CreatedAt.Unix(),
		}
	}

	return &IntrospectionResponse{Active: false}
}

// Revoke implements RFC 7009 Section 2.1. The token may be either kind;
// revoking an unknown or already revoked token succeeds. Revoking a refresh
// token takes its whole rotation chain down.
func (s *Service) Revoke(ctx context.Context, client *Client, raw string) error {
	hash := hashToken(raw)

	if token, err := s.accessRepo.GetByTokenHash(ctx, hash); err == nil {
		if token.ClientID != client.ClientID {
			// RFC 7009 Section 2.2: invalid tokens are not an error.
			return nil
		}
		if err := s.accessRepo.Revoke(ctx, hash); err != nil {
			return NewError(ErrServerError, "")
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeTokenRevoked,
			ActorID:  client.ClientID,
			Resource: audit.ResourceToken,
			Metadata: map[string]any{"kind": "access_token"},
		})
		return nil
	}

	if rt, err := s.refreshRepo.GetByTokenHash(ctx, hash); err == nil {
		if rt.ClientID != client.ClientID {
			return nil
		}
		if err := s.refreshRepo.RevokeChain(ctx, rt.RotationChainID); err != nil {
			return NewError(ErrServerError, "")
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeTokenRevoked,
			ActorID:  client.ClientID,
			Resource: audit.ResourceToken,
			Metadata: map[string]any{"kind": "refresh_token"},
		})
		return nil
	}

	return nil
}

// Helper functions

func containsScope(scope, target string) bool {
	for _, part := range strings.Fields(scope) {
		if part == target {
			return true
		}
	}
	return false
}

// scopeSubset reports whether every scope in sub appears in super
func scopeSubset(sub, super string) bool {
	for _, part := range strings.Fields(sub) {
		if !containsScope(super, part) {
			return false
		}
	}
	return true
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func secretDigestsMatch(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateClientSecret generates a new client secret
func GenerateClientSecret() string {
	return generateToken()
}

// HashClientSecret hashes a client secret for storage
func HashClientSecret(secret string) string {
	return hashToken(secret)
}
