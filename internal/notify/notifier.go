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

// Package notify provides development implementations of the mfa.Notifier
// port. Production deployments substitute a real SMS/email provider.
package notify

import (
	"context"
	"log/slog"

	"github.com/trustgate/trustgate/internal/mfa"
)

// LogNotifier writes delivery intents to the structured log instead of
// sending anything. The code itself is never logged.
type LogNotifier struct{}

// NewLogNotifier creates a new log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send records the delivery intent
func (n *LogNotifier) Send(ctx context.Context, kind mfa.FactorKind, destination, code string) error {
	slog.InfoContext(ctx, "mfa code delivery",
		slog.String("kind", string(kind)),
		slog.String("destination", destination),
		slog.Int("code_length", len(code)),
	)
	return nil
}
