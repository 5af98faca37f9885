package mfa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/trustgate/trustgate/internal/audit"
	"github.com/trustgate/trustgate/internal/observability/logger"
)

// Config holds MFA configuration
type Config struct {
	// Issuer names this server in otpauth:// provisioning URIs.
	Issuer      string
	CodeTTL     time.Duration
	MaxAttempts int
	BackupCodes int
}

// Service orchestrates factor enrolment and challenge verification. It is
// consulted by the token endpoint as a gate before credential issuance.
type Service struct {
	factors     FactorRepository
	challenges  ChallengeRepository
	notifier    Notifier
	auditLogger audit.Logger
	cfg         Config

	// now is swapped in tests to pin TOTP windows.
	now func() time.Time
}

// NewService creates a new MFA service
func NewService(
	factors FactorRepository,
	challenges ChallengeRepository,
	notifier Notifier,
	auditLogger audit.Logger,
	cfg Config,
) *Service {
	if cfg.CodeTTL <= 0 || cfg.CodeTTL > 5*time.Minute {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackupCodes <= 0 {
		cfg.BackupCodes = 10
	}

	return &Service{
		factors:     factors,
		challenges:  challenges,
		notifier:    notifier,
		auditLogger: auditLogger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Required reports whether the user holds at least one enabled, verified
// factor other than a backup-code set. Implements the token endpoint's
// step-up gate.
func (s *Service) Required(ctx context.Context, userID string) (bool, error) {
	factors, err := s.factors.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, f := range factors {
		if f.Usable() && f.Kind != KindBackupCode {
			return true, nil
		}
	}
	return false, nil
}

// TOTPEnrolment is returned once at enrolment time; the secret and backup
// codes are never retrievable again.
type TOTPEnrolment struct {
	FactorID        string
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// EnrollTOTP provisions a TOTP factor (RFC 6238, 160-bit secret) together
// with single-use backup codes. The factor stays unverified until the first
// challenge succeeds.
func (s *Service) EnrollTOTP(ctx context.Context, userID, accountName string) (*TOTPEnrolment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.Issuer,
		AccountName: accountName,
		SecretSize:  20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	factor := &Factor{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      KindTOTP,
		Secret:    key.Secret(),
		CreatedAt: time.Now(),
	}
	if err := s.factors.Create(ctx, factor); err != nil {
		return nil, err
	}

	plaintext, err := s.issueBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMFAEnrolled,
		ActorID:  userID,
		Resource: audit.ResourceFactor,
		Metadata: map[string]any{"kind": string(KindTOTP)},
	})

	return &TOTPEnrolment{
		FactorID:        factor.ID,
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     plaintext,
	}, nil
}

// EnrollDelivery provisions an sms or email factor and immediately opens a
// confirmation challenge against the stored destination.
func (s *Service) EnrollDelivery(ctx context.Context, userID string, kind FactorKind, destination string) (*ChallengeInfo, error) {
	if kind != KindSMS && kind != KindEmail {
		return nil, NewError(ErrMFAInvalid, "")
	}

	factor := &Factor{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Destination: destination,
		CreatedAt:   time.Now(),
	}
	if err := s.factors.Create(ctx, factor); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMFAEnrolled,
		ActorID:  userID,
		Resource: audit.ResourceFactor,
		Metadata: map[string]any{"kind": string(kind)},
	})

	return s.challengeFactor(ctx, factor)
}

// issueBackupCodes replaces the user's backup code factor with a fresh set
func (s *Service) issueBackupCodes(ctx context.Context, userID string) ([]string, error) {
	existing, err := s.factors.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, f := range existing {
		if f.Kind == KindBackupCode {
			if err := s.factors.Delete(ctx, f.ID); err != nil {
				return nil, err
			}
		}
	}

	plaintext := make([]string, 0, s.cfg.BackupCodes)
	hashed := make([]string, 0, s.cfg.BackupCodes)
	for i := 0; i < s.cfg.BackupCodes; i++ {
		code := generateBackupCode()
		plaintext = append(plaintext, code)
		hashed = append(hashed, hashCode(code))
	}

	factor := &Factor{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        KindBackupCode,
		Enabled:     true,
		Verified:    true,
		BackupCodes: hashed,
		CreatedAt:   time.Now(),
	}
	if err := s.factors.Create(ctx, factor); err != nil {
		return nil, err
	}

	return plaintext, nil
}

// ChallengeInfo is handed to the client; the destination is masked so the
// challenge cannot be used for enumeration.
type ChallengeInfo struct {
	ChallengeID     string     `json:"challenge_id"`
	Kind            FactorKind `json:"kind"`
	DestinationHint string     `json:"destination_hint,omitempty"`
}

// CreateChallenge opens a challenge for one of the user's factors. TOTP and
// backup-code challenges carry no delivered code; sms and email challenges
// deliver a 6-digit code through the notifier.
func (s *Service) CreateChallenge(ctx context.Context, userID string, preferred FactorKind) (*ChallengeInfo, error) {
	factors, err := s.factors.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var chosen *Factor
	for _, f := range factors {
		if preferred != "" && f.Kind != preferred {
			continue
		}
		if f.Kind == KindWebAuthn {
			continue
		}
		// Unverified factors are challengeable to complete enrolment.
		if chosen == nil || (f.Usable() && !chosen.Usable()) {
			chosen = f
		}
	}
	if chosen == nil {
		return nil, ErrNoUsableFactor
	}

	return s.challengeFactor(ctx, chosen)
}

func (s *Service) challengeFactor(ctx context.Context, factor *Factor) (*ChallengeInfo, error) {
	challenge := &Challenge{
		ID:          uuid.NewString(),
		UserID:      factor.UserID,
		FactorID:    factor.ID,
		Kind:        factor.Kind,
		ExpiresAt:   time.Now().Add(s.cfg.CodeTTL),
		MaxAttempts: s.cfg.MaxAttempts,
		CreatedAt:   time.Now(),
	}

	var code string
	if factor.Kind == KindSMS || factor.Kind == KindEmail {
		code = generateNumericCode()
		challenge.CodeHash = hashCode(code)
	}

	if err := s.challenges.Create(ctx, challenge); err != nil {
		return nil, err
	}

	// Delivery happens outside any record lock and never blocks challenge
	// creation; a lost message surfaces as an expired challenge.
	if code != "" && s.notifier != nil {
		if err := s.notifier.Send(ctx, factor.Kind, factor.Destination, code); err != nil {
			slog.ErrorContext(ctx, "mfa code delivery failed",
				logger.Error(err),
				logger.ChallengeKind(string(factor.Kind)),
			)
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMFAChallenge,
		ActorID:  factor.UserID,
		Resource: audit.ResourceChallenge,
		Metadata: map[string]any{"kind": string(factor.Kind)},
	})

	return &ChallengeInfo{
		ChallengeID:     challenge.ID,
		Kind:            factor.Kind,
		DestinationHint: maskDestination(factor.Kind, factor.Destination),
	}, nil
}

// VerifyResult reports the outcome of a verification attempt. Remaining is
// meaningful only on failure and is for the challenged client's guidance.
type VerifyResult struct {
	OK        bool
	Remaining int
}

// Verify checks a submitted code against a challenge. The challenge is
// destroyed on success, expiry or lockout. Unknown challenge and wrong user
// are the same error so neither can be enumerated.
func (s *Service) Verify(ctx context.Context, challengeID, userID, submittedCode string) (*VerifyResult, error) {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil || challenge.UserID != userID {
		return nil, NewError(ErrMFAInvalid, "")
	}

	if s.now().After(challenge.ExpiresAt) {
		_ = s.challenges.Delete(ctx, challenge.ID)
		return nil, NewError(ErrMFAExpired, "")
	}

	if challenge.Attempts >= challenge.MaxAttempts {
		_ = s.challenges.Delete(ctx, challenge.ID)
		s.logLocked(ctx, challenge)
		return nil, NewError(ErrMFALocked, "")
	}

	attempts, err := s.challenges.IncrementAttempts(ctx, challenge.ID)
	if err != nil {
		return nil, NewError(ErrMFAInvalid, "")
	}
	if attempts > challenge.MaxAttempts {
		_ = s.challenges.Delete(ctx, challenge.ID)
		s.logLocked(ctx, challenge)
		return nil, NewError(ErrMFALocked, "")
	}

	factor, err := s.factors.GetByID(ctx, challenge.FactorID)
	if err != nil {
		return nil, NewError(ErrMFAInvalid, "")
	}

	ok := false
	switch challenge.Kind {
	case KindTOTP:
		ok = validateTOTP(submittedCode, factor.Secret, s.now())
	case KindSMS, KindEmail:
		ok = codeDigestsMatch(hashCode(submittedCode), challenge.CodeHash)
	case KindBackupCode:
		ok = s.consumeBackupCode(ctx, factor, submittedCode)
	}

	if !ok {
		remaining := challenge.MaxAttempts - attempts
		if remaining <= 0 {
			_ = s.challenges.Delete(ctx, challenge.ID)
			s.logLocked(ctx, challenge)
			return nil, NewError(ErrMFALocked, "")
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeMFAFailed,
			ActorID:  challenge.UserID,
			Resource: audit.ResourceChallenge,
			Metadata: map[string]any{"kind": string(challenge.Kind), "attempts": attempts},
		})
		return &VerifyResult{OK: false, Remaining: remaining}, nil
	}

	// Single success: the challenge is destroyed.
	_ = s.challenges.Delete(ctx, challenge.ID)

	now := time.Now()
	factor.LastUsedAt = &now
	if !factor.Verified {
		factor.Verified = true
		factor.Enabled = true
	}
	if err := s.factors.Update(ctx, factor); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMFAVerified,
		ActorID:  challenge.UserID,
		Resource: audit.ResourceChallenge,
		Metadata: map[string]any{"kind": string(challenge.Kind)},
	})

	return &VerifyResult{OK: true}, nil
}

// Cancel removes a pending challenge
func (s *Service) Cancel(ctx context.Context, challengeID, userID string) error {
	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil || challenge.UserID != userID {
		return NewError(ErrMFAInvalid, "")
	}
	return s.challenges.Delete(ctx, challenge.ID)
}

// SweepExpired reclaims expired challenge records; it holds no tokens.
func (s *Service) SweepExpired(ctx context.Context) error {
	return s.challenges.DeleteExpired(ctx)
}

func (s *Service) consumeBackupCode(ctx context.Context, factor *Factor, submitted string) bool {
	digest := hashCode(submitted)
	// Constant-time scan across the whole set; the match index is only
	// used after every comparison ran.
	match := -1
	for i, h := range factor.BackupCodes {
		if codeDigestsMatch(digest, h) {
			match = i
		}
	}
	if match < 0 {
		return false
	}

	factor.BackupCodes = append(factor.BackupCodes[:match], factor.BackupCodes[match+1:]...)
	if err := s.factors.Update(ctx, factor); err != nil {
		return false
	}
	return true
}

func (s *Service) logLocked(ctx context.Context, challenge *Challenge) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMFALocked,
		ActorID:  challenge.UserID,
		Resource: audit.ResourceChallenge,
		Metadata: map[string]any{"kind": string(challenge.Kind)},
	})
}

// validateTOTP checks the code against the current and adjacent 30-second
// windows (RFC 6238, HMAC-SHA1, skew 1).
func validateTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// generateNumericCode returns a 6-digit delivery code
func generateNumericCode() string {
	var b [4]byte
	rand.Read(b[:])
	n := binary.BigEndian.Uint32(b[:]) % 1000000
	return fmt.Sprintf("%06d", n)
}

// generateBackupCode returns one high-entropy single-use code
func generateBackupCode() string {
	b := make([]byte, 10)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func hashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func codeDigestsMatch(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// maskDestination hides all but a trailing hint of the delivery address
func maskDestination(kind FactorKind, destination string) string {
	switch kind {
	case KindSMS:
		if len(destination) < 4 {
			return "***"
		}
		return "***-***-" + destination[len(destination)-4:]
	case KindEmail:
		at := strings.IndexByte(destination, '@')
		if at < 1 {
			return "***"
		}
		return destination[:1] + "***" + destination[at:]
	}
	return ""
}
