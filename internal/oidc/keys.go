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
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signing algorithms for id_tokens. HS256 is deliberately absent.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
)

var ErrUnknownKey = errors.New("unknown signing key")

// SigningKey is one asymmetric key pair. Kid is stable for the key's
// lifetime; NotAfter is set when the key is retired by rotation.
type SigningKey struct {
	Kid       string
	Algorithm string
	Private   crypto.Signer
	NotBefore time.Time
	NotAfter  time.Time
}

func (k *SigningKey) method() jwt.SigningMethod {
	if k.Algorithm == AlgorithmES256 {
		return jwt.SigningMethodES256
	}
	return jwt.SigningMethodRS256
}

// JWK represents a JSON Web Key (RFC 7517). Public components only.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS represents a JSON Web Key Set (RFC 7517)
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// Keystore owns the signing key lifecycle. One key is the active signer;
// retired keys stay published until NotAfter plus the overlap window so
// verifiers can still resolve outstanding tokens by kid.
type Keystore struct {
	mu            sync.RWMutex
	algorithm     string
	overlapWindow time.Duration
	active        *SigningKey
	retired       []*SigningKey
}

// NewKeystore generates the initial key pair
func NewKeystore(algorithm string, overlapWindow time.Duration) (*Keystore, error) {
	ks := &Keystore{
		algorithm:     algorithm,
		overlapWindow: overlapWindow,
	}

	key, err := generateKey(algorithm)
	if err != nil {
		return nil, err
	}
	ks.active = key

	return ks, nil
}

// Active returns the current signer
func (ks *Keystore) Active() *SigningKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.active
}

// ByKid resolves a key for verification. Retired keys resolve until the end
// of their overlap window.
func (ks *Keystore) ByKid(kid string) (*SigningKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.active.Kid == kid {
		return ks.active, nil
	}
	for _, key := range ks.retired {
		if key.Kid == kid && time.Now().Before(key.NotAfter.Add(ks.overlapWindow)) {
			return key, nil
		}
	}
	return nil, ErrUnknownKey
}

// Rotate generates a new active key and retires the old one. The retired
// key remains published for the overlap window.
func (ks *Keystore) Rotate() error {
	next, err := generateKey(ks.algorithm)
	if err != nil {
		return err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	old := ks.active
	old.NotAfter = time.Now()
	ks.retired = append(ks.retired, old)
	ks.active = next

	// Drop keys past their overlap window.
	kept := ks.retired[:0]
	for _, key := range ks.retired {
		if time.Now().Before(key.NotAfter.Add(ks.overlapWindow)) {
			kept = append(kept, key)
		}
	}
	ks.retired = kept

	return nil
}

// JWKS returns the published key set: the active key plus retired keys
// still inside their overlap window.
func (ks *Keystore) JWKS() JWKS {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	keys := []JWK{publicJWK(ks.active)}
	for _, key := range ks.retired {
		if time.Now().Before(key.NotAfter.Add(ks.overlapWindow)) {
			keys = append(keys, publicJWK(key))
		}
	}

	return JWKS{Keys: keys}
}

func generateKey(algorithm string) (*SigningKey, error) {
	switch algorithm {
	case AlgorithmRS256:
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		return &SigningKey{
			Kid:       keyID(priv.PublicKey.N.Bytes()),
			Algorithm: algorithm,
			Private:   priv,
			NotBefore: time.Now(),
		}, nil
	case AlgorithmES256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate EC key: %w", err)
		}
		return &SigningKey{
			Kid:       keyID(append(priv.PublicKey.X.Bytes(), priv.PublicKey.Y.Bytes()...)),
			Algorithm: algorithm,
			Private:   priv,
			NotBefore: time.Now(),
		}, nil
	}
	return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
}

// keyID derives a stable kid from the public key material
func keyID(material []byte) string {
	hash := sha256.Sum256(material)
	return base64.RawURLEncoding.EncodeToString(hash[:16])
}

func publicJWK(key *SigningKey) JWK {
	switch pub := key.Private.Public().(type) {
	case *rsa.PublicKey:
		return JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: key.Algorithm,
			Kid: key.Kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(intToBytes(pub.E)),
		}
	case *ecdsa.PublicKey:
		byteLen := (pub.Curve.Params().BitSize + 7) / 8
		return JWK{
			Kty: "EC",
			Use: "sig",
			Alg: key.Algorithm,
			Kid: key.Kid,
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(padBytes(pub.X.Bytes(), byteLen)),
			Y:   base64.RawURLEncoding.EncodeToString(padBytes(pub.Y.Bytes(), byteLen)),
		}
	}
	return JWK{}
}

func intToBytes(n int) []byte {
	if n == 0 {
		return []byte{0}
	}
	var res []byte
	for n > 0 {
		res = append([]byte{byte(n & 0xff)}, res...)
		n >>= 8
	}
	return res
}

func padBytes(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}
