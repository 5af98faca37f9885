package oidc

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trustgate/trustgate/internal/identity"
	"github.com/trustgate/trustgate/internal/oauth2"
)

// Service handles OpenID Connect specific logic: id_token issuance, the JWT
// access-token profile, discovery metadata, JWKS and userinfo claims.
type Service struct {
	issuer     string
	keys       *Keystore
	users      identity.UserRepository
	idTokenTTL time.Duration
}

// DiscoveryMetadata represents OIDC Discovery metadata (OIDC Discovery Section 3)
type DiscoveryMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// NewService creates a new OIDC service
func NewService(issuer string, keys *Keystore, users identity.UserRepository, idTokenTTL time.Duration) *Service {
	if idTokenTTL <= 0 {
		idTokenTTL = 5 * time.Minute
	}
	return &Service{
		issuer:     issuer,
		keys:       keys,
		users:      users,
		idTokenTTL: idTokenTTL,
	}
}

// GetDiscoveryMetadata returns the OIDC configuration (OIDC Discovery Section 4)
func (s *Service) GetDiscoveryMetadata() DiscoveryMetadata {
	return DiscoveryMetadata{
		Issuer:                           s.issuer,
		AuthorizationEndpoint:            fmt.Sprintf("%s/oauth/authorize", s.issuer),
		TokenEndpoint:                    fmt.Sprintf("%s/oauth/token", s.issuer),
		UserInfoEndpoint:                 fmt.Sprintf("%s/oauth/userinfo", s.issuer),
		IntrospectionEndpoint:            fmt.Sprintf("%s/oauth/introspect", s.issuer),
		RevocationEndpoint:               fmt.Sprintf("%s/oauth/revoke", s.issuer),
		JWKSURI:                          fmt.Sprintf("%s/.well-known/jwks.json", s.issuer),
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{s.keys.Active().Algorithm},
		ScopesSupported:                  []string{"openid", "profile", "email"},
		GrantTypesSupported: []string{
			oauth2.GrantAuthorizationCode,
			oauth2.GrantClientCredentials,
			oauth2.GrantRefreshToken,
		},
		TokenEndpointAuthMethodsSupported: []string{
			oauth2.AuthMethodBasic,
			oauth2.AuthMethodPost,
		},
		CodeChallengeMethodsSupported: []string{
			oauth2.PKCEMethodPlain,
			oauth2.PKCEMethodS256,
		},
		ClaimsSupported: []string{
			"iss", "sub", "aud", "exp", "iat", "auth_time", "nonce",
			"name", "picture", "email", "email_verified",
		},
	}
}

// GetJWKS returns the public keys in JWKS format (RFC 7517)
func (s *Service) GetJWKS() JWKS {
	return s.keys.JWKS()
}

// IssueIDToken generates a signed id_token JWT (OIDC Core Section 2). The
// audience is the redeeming client; profile and email claims are released
// only for their scopes.
func (s *Service) IssueIDToken(ctx context.Context, req oauth2.IDTokenRequest) (string, error) {
	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load subject: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": user.ID,
		"aud": req.ClientID,
		"exp": now.Add(s.idTokenTTL).Unix(),
		"iat": now.Unix(),
	}

	if !req.AuthTime.IsZero() {
		claims["auth_time"] = req.AuthTime.Unix()
	}

	// OIDC Core Section 3.1.2.1: Include nonce if provided
	if req.Nonce != "" {
		claims["nonce"] = req.Nonce
	}

	// OIDC Core Section 3.1.3.6: at_hash is the base64url encoding of the
	// left-most half of the SHA-256 hash of the access token.
	if req.AccessToken != "" {
		atHash := sha256.Sum256([]byte(req.AccessToken))
		claims["at_hash"] = base64.RawURLEncoding.EncodeToString(atHash[:len(atHash)/2])
	}

	for k, v := range ScopeClaims(user, req.Scope) {
		claims[k] = v
	}

	return s.sign(claims)
}

// SignAccessToken mints the JWT access-token profile: iss, sub, aud, exp,
// iat, scope, jti signed by the active key.
func (s *Service) SignAccessToken(userID, clientID, scope, jti string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"aud": clientID,
		"exp": expiresAt.Unix(),
		"iat": issuedAt.Unix(),
		"jti": jti,
	}
	if userID != "" {
		claims["sub"] = userID
	} else {
		// Client-credentials tokens act on behalf of the client itself.
		claims["sub"] = clientID
	}
	if scope != "" {
		claims["scope"] = scope
	}

	return s.sign(claims)
}

func (s *Service) sign(claims jwt.MapClaims) (string, error) {
	key := s.keys.Active()
	token := jwt.NewWithClaims(key.method(), claims)
	token.Header["kid"] = key.Kid

	signed, err := token.SignedString(key.Private)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and verifies a JWT issued by this service, resolving
// the key by kid. Used by tests and by the resource-server side of the JWT
// access-token profile.
func (s *Service) VerifyToken(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := s.keys.ByKid(kid)
		if err != nil {
			return nil, err
		}
		return key.Private.Public(), nil
	}, jwt.WithValidMethods([]string{AlgorithmRS256, AlgorithmES256}), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// UserInfo returns the claims an access token's scopes release for its
// subject (OIDC Core Section 5.3.2). sub is always present.
func (s *Service) UserInfo(ctx context.Context, userID, scope string) (map[string]any, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	claims := map[string]any{"sub": user.ID}
	for k, v := range ScopeClaims(user, scope) {
		claims[k] = v
	}

	return claims, nil
}
