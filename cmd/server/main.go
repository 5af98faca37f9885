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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trustgate/trustgate/internal/audit"
	"github.com/trustgate/trustgate/internal/config"
	"github.com/trustgate/trustgate/internal/identity"
	"github.com/trustgate/trustgate/internal/mfa"
	"github.com/trustgate/trustgate/internal/notify"
	"github.com/trustgate/trustgate/internal/oauth2"
	"github.com/trustgate/trustgate/internal/observability/logger"
	"github.com/trustgate/trustgate/internal/observability/metrics"
	"github.com/trustgate/trustgate/internal/observability/tracing"
	"github.com/trustgate/trustgate/internal/oidc"
	"github.com/trustgate/trustgate/internal/store/memory"
	"github.com/trustgate/trustgate/internal/store/postgres"
	transportHTTP "github.com/trustgate/trustgate/internal/transport/http"
)

// repositories collects the store-backed ports regardless of backend
type repositories struct {
	clients    oauth2.ClientRepository
	codes      oauth2.AuthorizationCodeRepository
	access     oauth2.AccessTokenRepository
	refresh    oauth2.RefreshTokenRepository
	users      identity.UserRepository
	factors    mfa.FactorRepository
	challenges mfa.ChallengeRepository
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting trustgate authorization server")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	_, err = metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize store
	repos, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize store", logger.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	// Initialize signing keys
	keystore, err := oidc.NewKeystore(cfg.Keys.SigningAlg, cfg.Keys.OverlapWindow)
	if err != nil {
		slog.Error("failed to initialize signing keys", logger.Error(err))
		os.Exit(1)
	}

	// Initialize services
	identityService := identity.NewService(repos.users, passwordHasher)
	oidcService := oidc.NewService(cfg.Issuer.URL, keystore, repos.users, cfg.Tokens.IDTokenTTL)
	mfaService := mfa.NewService(
		repos.factors,
		repos.challenges,
		notify.NewLogNotifier(),
		auditLogger,
		mfa.Config{
			Issuer:      cfg.Observability.ServiceName,
			CodeTTL:     cfg.MFA.CodeTTL,
			MaxAttempts: cfg.MFA.MaxAttempts,
			BackupCodes: cfg.MFA.BackupCodes,
		},
	)

	var signer oauth2.AccessTokenSigner
	if cfg.Tokens.AccessTokenFormat == "jwt" {
		signer = oidcService
	}

	oauth2Service := oauth2.NewService(
		repos.clients,
		repos.codes,
		repos.access,
		repos.refresh,
		auditLogger,
		oidcService,
		signer,
		mfaService,
		oauth2.Config{
			Issuer:                  cfg.Issuer.URL,
			AccessTokenFormat:       cfg.Tokens.AccessTokenFormat,
			AccessTokenTTL:          cfg.Tokens.AccessTokenTTL,
			RefreshTokenAbsoluteTTL: cfg.Tokens.RefreshTokenAbsoluteTTL,
			CodeTTL:                 cfg.Tokens.CodeTTL,
			RequirePKCEForPublic:    cfg.Security.RequirePKCEForPublic,
		},
	)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		oauth2Service,
		oidcService,
		mfaService,
		identityService,
		auditLogger,
		transportHTTP.NewHeaderSubjectResolver(),
	)

	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Lifecycle jobs: TTL sweep and key rotation. Both are cancelled and
	// drained on shutdown.
	jobsCtx, cancelJobs := context.WithCancel(ctx)
	sweepDone := runSweeper(jobsCtx, cfg.Tokens.SweepInterval, repos)
	rotateDone := runKeyRotation(jobsCtx, cfg.Keys.RotationPeriod, keystore, auditLogger)

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	cancelJobs()
	<-sweepDone
	<-rotateDone

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

// buildStore selects the configured backend and returns its repositories
func buildStore(ctx context.Context, cfg *config.Config) (*repositories, func(), error) {
	if cfg.Database.Backend == "postgres" {
		db, err := postgres.New(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to database")
		return &repositories{
			clients:    postgres.NewClientRepository(db),
			codes:      postgres.NewAuthorizationCodeRepository(db),
			access:     postgres.NewAccessTokenRepository(db),
			refresh:    postgres.NewRefreshTokenRepository(db),
			users:      postgres.NewUserRepository(db),
			factors:    postgres.NewFactorRepository(db),
			challenges: postgres.NewChallengeRepository(db),
		}, db.Close, nil
	}

	mem := memory.New()
	return &repositories{
		clients:    mem.Clients,
		codes:      mem.Codes,
		access:     mem.Access,
		refresh:    mem.Refresh,
		users:      mem.Users,
		factors:    mem.Factors,
		challenges: mem.Challenges,
	}, func() {}, nil
}

// runSweeper reclaims expired codes, tokens and challenges on a tick.
// Non-expired records are never evicted.
func runSweeper(ctx context.Context, interval time.Duration, repos *repositories) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := repos.codes.DeleteExpired(ctx); err != nil {
					slog.ErrorContext(ctx, "code sweep failed", logger.Error(err))
				}
				if err := repos.access.DeleteExpired(ctx); err != nil {
					slog.ErrorContext(ctx, "access token sweep failed", logger.Error(err))
				}
				if err := repos.refresh.DeleteExpired(ctx); err != nil {
					slog.ErrorContext(ctx, "refresh token sweep failed", logger.Error(err))
				}
				if err := repos.challenges.DeleteExpired(ctx); err != nil {
					slog.ErrorContext(ctx, "challenge sweep failed", logger.Error(err))
				}
			}
		}
	}()

	return done
}

// runKeyRotation rotates the signing key on the configured period
func runKeyRotation(ctx context.Context, period time.Duration, keystore *oidc.Keystore, auditLogger audit.Logger) <-chan struct{} {
	done := make(chan struct{})
	if period <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := keystore.Rotate(); err != nil {
					slog.ErrorContext(ctx, "key rotation failed", logger.Error(err))
					continue
				}
				auditLogger.Log(ctx, audit.Event{
					Type:     audit.TypeKeyRotated,
					ActorID:  "system:rotation",
					Resource: audit.ResourceKey,
				})
			}
		}
	}()

	return done
}
