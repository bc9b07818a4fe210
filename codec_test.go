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
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/klauspost/compress/zlib"
)

func TestParseCloseFrame_Empty(t *testing.T) {
	result := parseCloseFrame(nil)
	if !result.abrupt {
		t.Fatalf("parseCloseFrame(nil).abrupt = false, want true")
	}
}

func TestParseCloseFrame_CodeAndReason(t *testing.T) {
	body := make([]byte, 2, 2+len("session timed out"))
	binary.BigEndian.PutUint16(body, 4009)
	body = append(body, "session timed out"...)

	result := parseCloseFrame(body)
	if result.abrupt {
		t.Fatalf("parseCloseFrame(%v).abrupt = true, want false", body)
	}
	if result.code != 4009 {
		t.Fatalf("parseCloseFrame(%v).code = %d, want 4009", body, result.code)
	}
	if result.reason != "session timed out" {
		t.Fatalf("parseCloseFrame(%v).reason = %q, want %q", body, result.reason, "session timed out")
	}
}

// zlibStreamServer writes binary WebSocket frames through a single
// persistent zlib.Writer, matching how a real Gateway server multiplexes
// many JSON messages over one zlib-stream compressed connection.
type zlibStreamServer struct {
	conn net.Conn
	zw   *zlib.Writer
	buf  bytes.Buffer
}

func newZlibStreamServer(conn net.Conn) *zlibStreamServer {
	s := &zlibStreamServer{conn: conn}
	s.zw = zlib.NewWriter(&s.buf)

	return s
}

func (s *zlibStreamServer) sendJSON(t *testing.T, payload string) {
	t.Helper()

	s.buf.Reset()
	if _, err := s.zw.Write([]byte(payload)); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := s.zw.Flush(); err != nil {
		t.Fatalf("zlib flush: %v", err)
	}

	if err := wsutil.WriteServerMessage(s.conn, ws.OpBinary, s.buf.Bytes()); err != nil {
		t.Fatalf("write server frame: %v", err)
	}
}

func TestFrameCodec_ReadsMultipleEnvelopesOffOneStream(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	server := newZlibStreamServer(serverConn)

	go func() {
		server.sendJSON(t, `{"op":10,"d":{"heartbeat_interval":1000}}`)
		server.sendJSON(t, `{"op":0,"s":1,"t":"READY","d":{"session_id":"abc"}}`)
	}()

	codec := newFrameCodec(clientConn)
	defer codec.Close()

	env, closed, err := codec.ReadEnvelope(2 * time.Second)
	if err != nil || closed != nil {
		t.Fatalf("ReadEnvelope() #1 = (%v, %v, %v), want a HELLO envelope", env, closed, err)
	}
	if env.Op != opHello {
		t.Fatalf("ReadEnvelope() #1 op = %d, want %d", env.Op, opHello)
	}

	env, closed, err = codec.ReadEnvelope(2 * time.Second)
	if err != nil || closed != nil {
		t.Fatalf("ReadEnvelope() #2 = (%v, %v, %v), want a READY envelope", env, closed, err)
	}
	if env.Op != opDispatch || env.T == nil || *env.T != eventReady {
		t.Fatalf("ReadEnvelope() #2 = %+v, want a READY dispatch", env)
	}
	if env.S == nil || *env.S != 1 {
		t.Fatalf("ReadEnvelope() #2 sequence = %v, want 1", env.S)
	}
}

// TestFrameCodec_ReadTimeoutDoesNotCloseTheStream proves a read timeout is
// recoverable: compress/flate's decompressor (and the json.Decoder wrapping
// it) latch the first error their underlying reader returns and replay it
// forever after. A timeout applied at that layer would permanently break
// every later ReadEnvelope call. Here the timeout is only ever observed by
// ReadEnvelope's own timer — the pump goroutine's decoder never sees it —
// so multiple timeouts in a row, followed by a real message, all work.
func TestFrameCodec_ReadTimeoutDoesNotCloseTheStream(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	server := newZlibStreamServer(serverConn)

	codec := newFrameCodec(clientConn)
	defer codec.Close()

	for i := 0; i < 3; i++ {
		_, _, err := codec.ReadEnvelope(50 * time.Millisecond)
		if err != errReadTimeout {
			t.Fatalf("ReadEnvelope() #%d error = %v, want errReadTimeout", i, err)
		}
	}

	go server.sendJSON(t, `{"op":11}`)

	env, closed, err := codec.ReadEnvelope(2 * time.Second)
	if err != nil || closed != nil {
		t.Fatalf("ReadEnvelope() after timeouts = (%v, %v, %v), want a HEARTBEAT_ACK envelope", env, closed, err)
	}
	if env.Op != opHeartbeatACK {
		t.Fatalf("ReadEnvelope() after timeouts op = %d, want %d", env.Op, opHeartbeatACK)
	}

	// A second message after the first still decodes correctly, proving
	// the persistent inflate context survived the timeouts undamaged.
	go server.sendJSON(t, `{"op":0,"s":2,"t":"RESUMED","d":null}`)

	env, closed, err = codec.ReadEnvelope(2 * time.Second)
	if err != nil || closed != nil {
		t.Fatalf("ReadEnvelope() final = (%v, %v, %v), want a RESUMED dispatch", env, closed, err)
	}
	if env.T == nil || *env.T != eventResumed {
		t.Fatalf("ReadEnvelope() final = %+v, want a RESUMED dispatch", env)
	}
}

// TestFrameCodec_ServerCloseIsClassified proves a close frame is detected
// even though the flate reader turns the raw io.EOF frameReader.Read
// returns into io.ErrUnexpectedEOF (Discord's zlib-stream is never
// terminated with a final deflate block, so flate treats any EOF as
// truncation) — ReadEnvelope must not rely on errors.Is(err, io.EOF).
func TestFrameCodec_ServerCloseIsClassified(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	server := newZlibStreamServer(serverConn)

	// zlib.NewReader needs the 2-byte header before it will return, so the
	// stream must carry at least one message before the close.
	go server.sendJSON(t, `{"op":10,"d":{"heartbeat_interval":1000}}`)

	codec := newFrameCodec(clientConn)
	defer codec.Close()

	if _, _, err := codec.ReadEnvelope(2 * time.Second); err != nil {
		t.Fatalf("ReadEnvelope() priming HELLO error: %v", err)
	}

	body := make([]byte, 2, 2+len("invalid session"))
	binary.BigEndian.PutUint16(body, 4009)
	body = append(body, "invalid session"...)

	go func() {
		_ = wsutil.WriteServerMessage(serverConn, ws.OpClose, body)
	}()

	env, closed, err := codec.ReadEnvelope(2 * time.Second)
	if err != nil {
		t.Fatalf("ReadEnvelope() error = %v, want nil with a classified close", err)
	}
	if env != nil {
		t.Fatalf("ReadEnvelope() env = %+v, want nil on a close", env)
	}
	if closed == nil {
		t.Fatalf("ReadEnvelope() closed = nil, want a closeResult")
	}
	if closed.abrupt {
		t.Fatalf("ReadEnvelope() closed.abrupt = true, want false")
	}
	if closed.code != 4009 {
		t.Fatalf("ReadEnvelope() closed.code = %d, want 4009", closed.code)
	}
	if closed.reason != "invalid session" {
		t.Fatalf("ReadEnvelope() closed.reason = %q, want %q", closed.reason, "invalid session")
	}
}
