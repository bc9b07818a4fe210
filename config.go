/************************************************************************************
 *
 * dwazgw, A Lightweight Go Discord Gateway session engine
 *
 * SPDX-License-Identifier: BSD-3-Clause
 *
 * Copyright 2025 Marouane Souiri
 *
 * Licensed under the BSD 3-Clause License.
 * See the LICENSE file for details.
 *
 ************************************************************************************/

package dwazgw

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// config holds Open's optional settings, built from functional Options.
// Grounded on the teacher's client.go (`WithToken`, `WithIntents`, ...
// applied over a `clientConfig` struct).
type config struct {
	presence    *PresenceUpdate
	discoverer  GatewayDiscoverer
	logger      zerolog.Logger
	userAgent   string
	readTimeout time.Duration
}

func defaultConfig() *config {
	return &config{
		logger:      zerolog.Nop(),
		userAgent:   defaultUA,
		readTimeout: defaultReadTimeout,
	}
}

// Option configures an Iterator at Open time.
type Option func(*config)

// WithPresence sets the initial presence sent with Identify.
func WithPresence(p *PresenceUpdate) Option {
	return func(c *config) { c.presence = p }
}

// WithLogger attaches a zerolog.Logger the engine writes structured
// connection-lifecycle events to. The zero value (zerolog.Logger{}) is
// replaced with a no-op logger unless explicitly set; pass
// zerolog.New(os.Stderr) or similar to see output.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithUserAgent overrides the User-Agent sent on the REST gateway
// discovery request and the WebSocket handshake.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithReadTimeout overrides how long Next waits for an incoming message
// before checking the heartbeat timers (spec.md §5); no deadline is set on
// the transport itself. Must be smaller than the Gateway's
// heartbeat interval to be useful; the default (3s) is safe for Discord's
// documented minimum interval.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { c.readTimeout = d }
}

// WithGatewayDiscoverer overrides the REST collaborator used to resolve
// the Gateway URL, primarily for tests (spec.md §8 scenarios use a fake
// implementing GatewayDiscoverer instead of hitting the network).
func WithGatewayDiscoverer(d GatewayDiscoverer) Option {
	return func(c *config) { c.discoverer = d }
}

// LoadTokenFromEnv loads a .env file (if present) via godotenv and returns
// the value of the given environment variable, untrimmed. An unset or
// empty variable is reported as an error. Grounded on the
// teacher's reliance on environment-based token loading for its own
// examples/tests.
func LoadTokenFromEnv(key string) (string, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("dwazgw: loading .env: %w", err)
	}

	token := os.Getenv(key)
	if token == "" {
		return "", fmt.Errorf("dwazgw: environment variable %q is not set", key)
	}

	return token, nil
}
