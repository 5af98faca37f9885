package identity

import (
	"context"
	"strings"
	"testing"
)

type stubUserRepo struct {
	users map[string]*User
}

func (m *stubUserRepo) Create(ctx context.Context, user *User) error {
	m.users[user.ID] = user
	return nil
}

func (m *stubUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *stubUserRepo) Update(ctx context.Context, user *User) error {
	if _, ok := m.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *stubUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

// TestPurpose: Validates Argon2id hashing round trip and the encoded format.
// Scope: Unit Test
// Security: password KDF (argon2id), constant-time verification
func TestIdentity_PasswordHasher(t *testing.T) {
	h := NewPasswordHasher(65536, 3, 4, 16, 32)

	hash, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=") {
		t.Errorf("unexpected hash format %q", hash)
	}

	ok, err := h.Verify("correct horse battery staple", hash)
	if err != nil || !ok {
		t.Fatalf("verification failed: ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("wrong password", hash)
	if err != nil {
		t.Fatalf("verify errored: %v", err)
	}
	if ok {
		t.Error("wrong password must not verify")
	}

	if _, err := h.Verify("x", "not-a-hash"); err == nil {
		t.Error("malformed hash must error")
	}
}

// TestPurpose: Validates provisioning and credential checks for the login
// collaborator surface.
// Scope: Unit Test
func TestIdentity_Service_Authenticate(t *testing.T) {
	repo := &stubUserRepo{users: make(map[string]*User)}
	s := NewService(repo, NewPasswordHasher(65536, 3, 4, 16, 32))
	ctx := context.Background()

	user, err := s.ProvisionUser(ctx, "u1@example.com", "User One", "")
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if err := s.SetPassword(ctx, user, "hunter2hunter2"); err != nil {
		t.Fatalf("set password failed: %v", err)
	}

	if _, err := s.ProvisionUser(ctx, "u1@example.com", "Dup", ""); err != ErrUserAlreadyExists {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}

	got, err := s.Authenticate(ctx, "u1@example.com", "hunter2hunter2")
	if err != nil || got.ID != user.ID {
		t.Fatalf("authentication failed: %v", err)
	}

	if _, err := s.Authenticate(ctx, "u1@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "ghost@example.com", "x"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
