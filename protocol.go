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
	"errors"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
)

// maxOutboundPayloadBytes is the Discord-documented limit on a single
// outbound Gateway payload's UTF-8 JSON encoding (spec.md §4.3).
const maxOutboundPayloadBytes = 4096

// libraryName is reported in the Identify payload's connection properties.
const libraryName = "dwazgw"

const (
	closeCodeClientNormal    = 1000
	closeCodeClientReconnect = 1011
)

// connState is a state of the Protocol State Machine (spec.md §4.3).
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateIdentifying
	stateLive
	stateResuming
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "DISCONNECTED"
	case stateConnecting:
		return "CONNECTING"
	case stateIdentifying:
		return "IDENTIFYING"
	case stateLive:
		return "LIVE"
	case stateResuming:
		return "RESUMING"
	default:
		return "UNKNOWN"
	}
}

// engine drives the Gateway protocol state machine inline, on the calling
// goroutine — spec.md §5 requires a single-threaded, cooperative state
// machine with no background timer fiber. This directly generalizes the
// teacher's shard.go (`connect`, `readLoop`, `handleGatewayPayload`,
// `reconnect`), collapsing the background-goroutine read loop into a
// synchronous function the caller re-enters via Iterator.Next.
type engine struct {
	session *Session
	hb      *heartbeatScheduler

	discoverer GatewayDiscoverer
	urlCache   *gatewayURLCache

	readTimeout time.Duration
	userAgent   string

	state connState
	conn  net.Conn
	codec *frameCodec

	logger zerolog.Logger
	connID string
}

func newEngine(session *Session, discoverer GatewayDiscoverer, readTimeout time.Duration, userAgent string, logger zerolog.Logger) *engine {
	return &engine{
		session:     session,
		hb:          newHeartbeatScheduler(),
		discoverer:  discoverer,
		urlCache:    &sharedGatewayURLCache,
		readTimeout: readTimeout,
		userAgent:   userAgent,
		state:       stateDisconnected,
		logger:      logger,
	}
}

// open transitions DISCONNECTED -> CONNECTING by discovering (or reusing
// the cached) Gateway URL and dialing it. Idempotent: a no-op if already
// connected (spec.md §8 invariant 7).
func (e *engine) open(ctx context.Context) error {
	if e.state != stateDisconnected {
		return nil
	}

	url, err := e.urlCache.get(ctx, e.discoverer)
	if err != nil {
		return err
	}

	return e.dial(ctx, url+gatewayQueryParams(), stateConnecting)
}

// resume transitions to RESUMING: closes the current socket with 1011,
// reopens to resume_gateway_url, and sends RESUME immediately (before any
// HELLO is observed on the new socket), matching the transition table's
// side effects and original_source/_client/_gateway.py's `_resume`.
func (e *engine) resume(ctx context.Context) error {
	e.closeLocal(closeCodeClientReconnect)

	if err := e.dial(ctx, e.session.resumeGatewayURL+gatewayQueryParams(), stateResuming); err != nil {
		return err
	}

	return e.sendResume()
}

// freshReconnect drops resume credentials and reconnects to the
// (cached/discovered) Gateway URL from scratch; IDENTIFY is sent once the
// next HELLO is observed (spec.md: LIVE/RESUMING + non-resumable Invalid
// Session -> CONNECTING).
func (e *engine) freshReconnect(ctx context.Context) error {
	e.closeLocal(closeCodeClientNormal)
	e.session.dropCredentials()

	url, err := e.urlCache.get(ctx, e.discoverer)
	if err != nil {
		return err
	}

	return e.dial(ctx, url+gatewayQueryParams(), stateConnecting)
}

func (e *engine) dial(ctx context.Context, dialURL string, next connState) error {
	conn, _, _, err := ws.Dialer{
		Header: ws.HandshakeHeaderHTTP{"User-Agent": []string{e.userAgent}},
	}.Dial(ctx, dialURL)
	if err != nil {
		return fmt.Errorf("dwazgw: dialing gateway: %w", err)
	}

	e.conn = conn
	e.codec = newFrameCodec(conn)
	e.state = next
	e.logger.Debug().Str("conn_id", e.connID).Str("url", dialURL).Msg("gateway connection opened")

	return nil
}

// closeLocal closes the current socket (if any) with the given status
// code without mutating session credentials; callers decide separately
// whether to drop them.
func (e *engine) closeLocal(code int) {
	if e.conn == nil {
		return
	}

	_ = wsutil.WriteClientMessage(e.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusCode(code), ""))
	_ = e.conn.Close()

	if e.codec != nil {
		_ = e.codec.Close()
	}

	e.conn = nil
	e.codec = nil
}

// close performs a caller-initiated clean shutdown (spec.md §4.4 close).
func (e *engine) close() {
	e.closeLocal(closeCodeClientNormal)
	e.session.dropCredentials()
	e.state = stateDisconnected
}

func gatewayQueryParams() string {
	q := url.Values{}
	q.Set("v", apiVersion)
	q.Set("encoding", "json")
	q.Set("compress", "zlib-stream")

	return "?" + q.Encode()
}

// next is the core of the Protocol State Machine: it loops internally
// through control frames (HELLO, HEARTBEAT, HEARTBEAT_ACK, RECONNECT,
// INVALID_SESSION, resumable server close) and returns only when there is
// a dispatch to surface to the caller, or a terminal error.
func (e *engine) next(ctx context.Context) (*Event, error) {
	for {
		if e.state == stateDisconnected {
			return nil, ErrNotConnected
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		env, closed, err := e.codec.ReadEnvelope(e.readTimeout)

		switch {
		case errors.Is(err, errReadTimeout):
			if giveUp, tickErr := e.tick(ctx); giveUp {
				return nil, tickErr
			}

			continue

		case err != nil:
			return nil, err

		case closed != nil:
			ev, err := e.handleClose(ctx, closed)
			if err != nil {
				return nil, err
			}
			if ev != nil {
				return ev, nil
			}

			continue
		}

		e.session.updateSequence(env.S)

		ev, err := e.handleEnvelope(ctx, env)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}
	}
}

// tick evaluates the heartbeat predicates on a read timeout — the only
// timeout in the system, checked inline per spec.md §5. Returns
// (true, err) when the session must terminate/transition away and the
// caller should stop looping this iteration (err is non-nil only on a
// hard failure; a resume attempt that succeeds returns (false, nil)).
func (e *engine) tick(ctx context.Context) (bool, error) {
	now := time.Now()

	if e.hb.ackMissing(now) {
		e.logger.Warn().Str("conn_id", e.connID).Msg("heartbeat ack missing, attempting resume")

		if err := e.resume(ctx); err != nil {
			return true, fmt.Errorf("dwazgw: resuming after %w: %w", &AckMissingError{LastSent: e.hb.lastSentAt, Interval: e.hb.interval()}, err)
		}

		return false, nil
	}

	if e.hb.beatDue(now) {
		if err := e.sendHeartbeat(); err != nil {
			return true, err
		}

		e.hb.onBeatSent(now)
	}

	return false, nil
}

func (e *engine) handleClose(ctx context.Context, c *closeResult) (*Event, error) {
	if c.abrupt {
		e.logger.Warn().Str("conn_id", e.connID).Msg("gateway connection closed abruptly")

		if e.session.canResume() {
			return nil, e.resume(ctx)
		}

		return nil, e.freshReconnect(ctx)
	}

	classified := classifyClose(c.code)
	e.logger.Warn().Str("conn_id", e.connID).Int("close_code", c.code).
		Str("description", classified.Description).Msg("gateway closed connection")

	if !classified.Reconnect {
		e.session.dropCredentials()
		e.state = stateDisconnected

		return nil, &GatewayClosedError{Code: c.code, Reason: c.reason}
	}

	return nil, e.resume(ctx)
}

func (e *engine) handleEnvelope(ctx context.Context, env *Envelope) (*Event, error) {
	switch env.Op {
	case opHello:
		var hello helloData
		if err := sonic.Unmarshal(env.D, &hello); err != nil {
			return nil, &ProtocolViolationError{Detail: "malformed HELLO payload: " + err.Error()}
		}

		e.hb.onHello(hello.HeartbeatInterval, time.Now())

		switch e.state {
		case stateConnecting:
			e.state = stateIdentifying

			return nil, e.sendIdentify()
		case stateResuming:
			// RESUME was already sent when this socket was opened; per
			// spec.md §4.3, do not re-identify while a resume is in flight.
			return nil, nil
		default:
			return nil, nil
		}

	case opDispatch:
		if env.T == nil {
			return nil, &ProtocolViolationError{Detail: "dispatch envelope missing t"}
		}

		name := *env.T

		if e.state == stateIdentifying && name == eventReady {
			var ready readyData
			if err := sonic.Unmarshal(env.D, &ready); err != nil {
				return nil, &ProtocolViolationError{Detail: "malformed READY payload: " + err.Error()}
			}

			e.session.applyReady(ready.SessionID, ready.ResumeGatewayURL)
			e.state = stateLive
			e.logger.Info().Str("conn_id", e.connID).Str("session_id", ready.SessionID).Msg("session ready")
		} else if e.state == stateResuming && name == eventResumed {
			e.state = stateLive
			e.logger.Info().Str("conn_id", e.connID).Msg("session resumed")
		}

		return &Event{Name: name, Data: env.D}, nil

	case opHeartbeat:
		if err := e.sendHeartbeat(); err != nil {
			return nil, err
		}

		e.hb.onBeatSent(time.Now())

		return nil, nil

	case opHeartbeatACK:
		e.hb.onAck(time.Now())

		return nil, nil

	case opReconnect:
		e.logger.Info().Str("conn_id", e.connID).Msg("gateway requested reconnect")

		return nil, e.resume(ctx)

	case opInvalidSession:
		var resumable bool
		_ = sonic.Unmarshal(env.D, &resumable)

		if resumable {
			e.logger.Info().Str("conn_id", e.connID).Msg("invalid session, resuming")

			return nil, e.resume(ctx)
		}

		e.logger.Info().Str("conn_id", e.connID).Msg("invalid session, reconnecting fresh")

		return nil, e.freshReconnect(ctx)

	default:
		return nil, &ProtocolViolationError{Detail: fmt.Sprintf("unexpected opcode %d from server", env.Op)}
	}
}

func (e *engine) sendIdentify() error {
	return e.send(opIdentify, identifyPayload{
		Token: e.session.token,
		Properties: identifyConnectionProperties{
			OS:      runtime.GOOS,
			Browser: libraryName,
			Device:  libraryName,
		},
		Intents:  e.session.intents,
		Presence: e.session.presence,
	})
}

func (e *engine) sendResume() error {
	return e.send(opResume, resumePayload{
		Token:     e.session.token,
		SessionID: e.session.sessionID,
		Seq:       e.session.sequencePtr(),
	})
}

// sendHeartbeat sends the current sequence as `d`, or null if none has
// been observed yet — matching original_source's `d=self.__sequence`
// (`None` until the first sequenced envelope) rather than a 0 default
// (spec.md §8 invariant 4).
func (e *engine) sendHeartbeat() error {
	return e.send(opHeartbeat, e.session.sequencePtr())
}

func (e *engine) sendPresence(p *PresenceUpdate) error {
	return e.send(opPresenceUpdate, p)
}

// send marshals d as the `d` field of an Envelope and writes it as a text
// frame. Every outgoing payload is validated against
// maxOutboundPayloadBytes before it touches the socket (spec.md §4.3,
// §8 invariant 6).
func (e *engine) send(op gatewayOpcode, d any) error {
	dBytes, err := sonic.Marshal(d)
	if err != nil {
		return fmt.Errorf("dwazgw: marshalling outbound payload: %w", err)
	}

	full, err := sonic.Marshal(Envelope{Op: op, D: dBytes})
	if err != nil {
		return fmt.Errorf("dwazgw: marshalling outbound envelope: %w", err)
	}

	if len(full) > maxOutboundPayloadBytes {
		return &PayloadTooLargeError{Size: len(full)}
	}

	return wsutil.WriteClientMessage(e.conn, ws.OpText, full)
}
