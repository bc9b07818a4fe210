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
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestEngineSend_RejectsOversizedPayload(t *testing.T) {
	e := newEngine(newSession("token", GatewayIntentGuilds, nil), fakeDiscoverer{}, defaultReadTimeout, defaultUA, zerolog.Nop())

	oversized := strings.Repeat("x", maxOutboundPayloadBytes)
	err := e.send(opPresenceUpdate, oversized)

	var tooLarge *PayloadTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("send() error = %v, want a *PayloadTooLargeError", err)
	}
}

func TestEngineSend_AllowsSmallPayload(t *testing.T) {
	e := newEngine(newSession("token", GatewayIntentGuilds, nil), fakeDiscoverer{}, defaultReadTimeout, defaultUA, zerolog.Nop())

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()
	e.conn = clientConn

	go io.Copy(io.Discard, serverConn)

	full := map[string]any{"since": nil, "status": "online", "afk": false}
	err := e.send(opPresenceUpdate, full)

	var tooLarge *PayloadTooLargeError
	if errors.As(err, &tooLarge) {
		t.Fatalf("send() rejected a small payload as too large: %v", err)
	}
	if err != nil {
		t.Fatalf("send() error = %v, want nil", err)
	}
}
