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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const defaultReadTimeout = 3 * time.Second

// Iterator is the sole public entry point to a Gateway session: a
// pull-based, single-threaded cursor over dispatch events. Grounded on the
// teacher's functional-options Client (client.go) for configuration, and
// on original_source/_client/_gateway.py's `__enter__`/`__next__`/
// `__exit__`/`presence_update` for the iteration shape itself — the
// teacher's own API is push-style (handler registration) and does not
// generalize directly, so this file is written fresh in the teacher's
// idiom rather than adapted line-by-line.
//
// An Iterator is not safe for concurrent use from multiple goroutines
// (spec.md §5): SetPresence reads the engine state and writes to the
// socket without synchronizing with Next, so it must not be called while
// another goroutine is inside Next.
type Iterator struct {
	mu     sync.Mutex // guards session.presence and the paced SetPresence path
	engine *engine

	presenceLimiter *rate.Limiter

	logger zerolog.Logger
}

// Open constructs an Iterator and performs the initial connection
// (DISCONNECTED -> CONNECTING). The returned Iterator is ready to be
// driven by Next.
func Open(ctx context.Context, token string, intents GatewayIntent, opts ...Option) (*Iterator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	session := newSession(token, intents, cfg.presence)

	var discoverer GatewayDiscoverer = cfg.discoverer
	if discoverer == nil {
		discoverer = newHTTPGatewayDiscoverer(cfg.userAgent)
	}

	connID := uuid.NewString()
	logger := cfg.logger.With().Str("conn_id", connID).Logger()

	eng := newEngine(session, discoverer, cfg.readTimeout, cfg.userAgent, logger)
	eng.connID = connID

	it := &Iterator{
		engine:          eng,
		logger:          logger,
		presenceLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}

	if err := eng.open(ctx); err != nil {
		return nil, err
	}

	return it, nil
}

// Next blocks until a dispatch event is available, a terminal error
// occurs, or ctx is cancelled; ctx is checked between reads, so a
// cancellation is noticed within one read timeout. It transparently loops through and resolves
// control frames (Hello, Heartbeat, HeartbeatAck, Reconnect, Invalid
// Session, resumable close) without returning; only dispatches and
// terminal errors are observable here (spec.md §4.4).
//
// Once Next returns a non-nil error, the Iterator is terminated: the
// caller must not call Next again. ErrNotConnected is returned by a
// misuse (calling Next after Close).
func (it *Iterator) Next(ctx context.Context) (*Event, error) {
	event, err := it.engine.next(ctx)
	if err != nil {
		it.logger.Debug().Err(err).Msg("iterator terminated")
	}

	return event, err
}

// SetPresence updates the presence sent to the Gateway. If the session is
// live the update is sent immediately (best-effort, rate-limited
// defensively to guard against a caller hammering this from a hot loop);
// otherwise it is stored and applied on the next Identify (spec.md §4.4,
// resolving the "presence update while disconnected" open question by
// queuing rather than erroring).
func (it *Iterator) SetPresence(ctx context.Context, p *PresenceUpdate) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.engine.session.setPresence(p)

	if it.engine.state != stateLive {
		return nil
	}

	if err := it.presenceLimiter.Wait(ctx); err != nil {
		return err
	}

	return it.engine.sendPresence(p)
}

// Latency returns the most recently observed heartbeat round-trip
// duration (time between sending a Heartbeat and receiving its Ack), or
// zero if no round trip has completed yet.
func (it *Iterator) Latency() time.Duration {
	h := it.engine.hb
	if h.lastAckAt.IsZero() || h.lastSentAt.IsZero() || h.lastAckAt.Before(h.lastSentAt) {
		return 0
	}

	return h.lastAckAt.Sub(h.lastSentAt)
}

// Close performs a clean shutdown: closes the socket with status 1000 and
// drops resume credentials. The Iterator must not be used afterward.
func (it *Iterator) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.engine.close()

	return nil
}
