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
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/klauspost/compress/zlib"
)

// closeResult is returned by the Frame Codec when the server sends a close
// frame. An empty body is treated as abrupt (spec.md §4.1).
type closeResult struct {
	abrupt bool
	code   int
	reason string
}

// frameReader bridges WebSocket frame boundaries to a continuous
// io.Reader, feeding the persistent zlib inflate context. Adapted from the
// teacher's gatewayReader (shard.go): ping/pong are answered transparently,
// text frames are rejected (the codec operates in binary zlib-stream mode
// exclusively), and close frames surface as io.EOF after recording their
// code/reason for the caller to retrieve via lastClose.
//
// Unlike the teacher's reader, frameReader never sets a read deadline: it
// blocks until a full frame arrives or the connection genuinely fails.
// Deadlines used to live here, but compress/flate's decompressor (and the
// encoding/json.Decoder wrapping it) latch the first error their
// underlying reader returns and replay it forever afterward — including
// errReadTimeout, a condition spec.md §5 expects every idle period to
// produce. Pushing the deadline down here poisoned the persistent inflate
// context on the very first heartbeat-tick timeout. The timeout is now
// frameCodec.ReadEnvelope's concern instead; see pump below.
type frameReader struct {
	conn      net.Conn
	buf       bytes.Buffer
	lastClose *closeResult
}

func newFrameReader(conn net.Conn) *frameReader {
	return &frameReader{conn: conn}
}

func (r *frameReader) Read(p []byte) (int, error) {
	if r.buf.Len() > 0 {
		return r.buf.Read(p)
	}

	for {
		// ws.ReadFrame hands back every frame as-is; wsutil.ReadServerData
		// would consume close and ping frames itself and never return them.
		frame, err := ws.ReadFrame(r.conn)
		if err != nil {
			return 0, err
		}

		msg, op := frame.Payload, frame.Header.OpCode

		switch op {
		case ws.OpBinary, ws.OpContinuation:
			r.buf.Write(msg)

			return r.buf.Read(p)

		case ws.OpClose:
			r.lastClose = parseCloseFrame(msg)

			return 0, io.EOF

		case ws.OpPing:
			if err := wsutil.WriteClientMessage(r.conn, ws.OpPong, msg); err != nil {
				return 0, err
			}

		case ws.OpPong:
			continue

		case ws.OpText:
			return 0, &ProtocolViolationError{Detail: "received text frame on a zlib-stream connection"}

		default:
			return 0, &ProtocolViolationError{Detail: fmt.Sprintf("unexpected frame opcode %d", op)}
		}
	}
}

// parseCloseFrame splits a close frame body into a close code (first two
// bytes, big-endian) and a UTF-8 reason, or reports an abrupt close if the
// body is empty (spec.md §4.1, mirrored from
// original_source/_client/_gateway.py's `_recv` close-frame handling,
// which uses `struct.unpack("!H", data[0:2])`).
func parseCloseFrame(body []byte) *closeResult {
	if len(body) == 0 {
		return &closeResult{abrupt: true}
	}

	code := binary.BigEndian.Uint16(body[:2])

	return &closeResult{code: int(code), reason: string(body[2:])}
}

// codecResult is one unit of work handed from the pump goroutine to
// ReadEnvelope: exactly one decoded Envelope, a close, or a terminal error.
type codecResult struct {
	env    *Envelope
	closed *closeResult
	err    error
}

// frameCodec reads one logical Gateway message per call to ReadEnvelope,
// decompressing binary frames through a persistent zlib inflate context
// (one per connection, never per message) and decoding the resulting JSON
// into an Envelope.
//
// Both the zlib handshake and the decode loop run on a dedicated pump
// goroutine with no read deadline, so the only errors the inflate context
// or json.Decoder ever see are real connection failures, never a
// heartbeat-tick timeout (spec.md §4.1, §5). ReadEnvelope applies the
// timeout on its own, as a channel wait with a timer, which leaves the
// decoder untouched when it fires — the tick is recoverable precisely
// because it never reaches the decompression pipeline. No protocol
// decision is made on the pump goroutine; it only turns frames into
// decoded values, so the state machine in protocol.go remains entirely
// synchronous and caller-driven, as required.
type frameCodec struct {
	reader *frameReader

	results chan codecResult
	done    chan struct{}

	mu      sync.Mutex
	inflate io.ReadCloser // set by pump once the zlib handshake completes
}

// newFrameCodec pairs a frameCodec with conn and starts its pump
// goroutine. Per spec.md §9 ("inflate context lifetime... always pair
// socket creation with context creation"), callers must never reuse a
// frameCodec across a reconnect.
func newFrameCodec(conn net.Conn) *frameCodec {
	c := &frameCodec{
		reader:  newFrameReader(conn),
		results: make(chan codecResult, 1),
		done:    make(chan struct{}),
	}

	go c.pump()

	return c
}

// pump performs the zlib handshake and then decodes Envelopes off the
// persistent inflate context one at a time, handing each to ReadEnvelope
// over results. A close frame is detected by reader.lastClose rather than
// by matching a specific wrapped error: the raw io.EOF frameReader.Read
// returns for a close frame is turned into io.ErrUnexpectedEOF by the
// mid-stream zlib reader (Discord's zlib-stream is never terminated with
// a final deflate block, so flate treats any EOF as truncation), so
// checking for io.EOF specifically never matches a real close.
func (c *frameCodec) pump() {
	defer close(c.results)

	inflate, err := zlib.NewReader(c.reader)
	if err != nil {
		c.emit(codecResult{err: fmt.Errorf("dwazgw: zlib handshake failed: %w", err)})

		return
	}

	c.mu.Lock()
	c.inflate = inflate
	c.mu.Unlock()

	decoder := json.NewDecoder(inflate)

	for {
		var env Envelope
		if err := decoder.Decode(&env); err != nil {
			if c.reader.lastClose != nil {
				c.emit(codecResult{closed: c.reader.lastClose})

				return
			}

			var violation *ProtocolViolationError
			if !errors.As(err, &violation) {
				err = fmt.Errorf("dwazgw: decoding gateway envelope: %w", err)
			}

			c.emit(codecResult{err: err})

			return
		}

		if !c.emit(codecResult{env: &env}) {
			return
		}
	}
}

// emit delivers res to results, or gives up if the codec has been closed
// in the meantime. Returns false once the codec is closed.
func (c *frameCodec) emit(res codecResult) bool {
	select {
	case c.results <- res:
		return true
	case <-c.done:
		return false
	}
}

// ReadEnvelope returns the next decoded Envelope, a non-nil closeResult if
// the server sent a close frame, or errReadTimeout if no message arrived
// within timeout. A timeout never touches the inflate context or decoder
// state: the pump goroutine keeps waiting for the next frame regardless,
// so the very next call can still observe the message that eventually
// arrives.
func (c *frameCodec) ReadEnvelope(timeout time.Duration) (*Envelope, *closeResult, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case res, ok := <-c.results:
		if !ok {
			return nil, nil, io.ErrClosedPipe
		}

		return res.env, res.closed, res.err

	case <-timer:
		return nil, nil, errReadTimeout
	}
}

func (c *frameCodec) Close() error {
	close(c.done)

	c.mu.Lock()
	inflate := c.inflate
	c.mu.Unlock()

	if inflate == nil {
		return nil
	}

	return inflate.Close()
}
