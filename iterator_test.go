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
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// fakeDiscoverer always returns a fixed URL, bypassing the REST round trip
// (spec.md §8: scenarios are driven against a fake GatewayDiscoverer rather
// than the network).
type fakeDiscoverer struct{ url string }

func (f fakeDiscoverer) GetGateway(ctx context.Context) (string, error) {
	return f.url, nil
}

// newMockGateway starts an in-process server speaking the zlib-stream
// Gateway wire protocol, grounded on the mock-server pattern of
// pyyupsk-discord-stayonline's gateway_test.go, adapted to the gobwas/ws
// transport and Discord's zlib-stream framing this engine actually uses.
func newMockGateway(t *testing.T, handle func(t *testing.T, server *zlibStreamServer, conn net.Conn)) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			t.Errorf("server upgrade failed: %v", err)

			return
		}

		server := newZlibStreamServer(conn)
		go handle(t, server, conn)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func wsURL(httpURL string) string {
	return "ws://" + strings.TrimPrefix(strings.TrimPrefix(httpURL, "http://"), "https://")
}

func TestIterator_ConnectIdentifyReady(t *testing.T) {
	srv := newMockGateway(t, func(t *testing.T, server *zlibStreamServer, conn net.Conn) {
		server.sendJSON(t, `{"op":10,"d":{"heartbeat_interval":30000}}`)

		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			t.Errorf("reading IDENTIFY: %v", err)

			return
		}

		server.sendJSON(t, `{"op":0,"s":1,"t":"READY","d":{"session_id":"sess-1","resume_gateway_url":"`+wsURL(srv.URL)+`"}}`)
	})

	sharedGatewayURLCache.reset()

	it, err := Open(context.Background(), "token", GatewayIntentGuilds,
		WithGatewayDiscoverer(fakeDiscoverer{url: wsURL(srv.URL)}),
		WithReadTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer it.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev, err := it.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if ev.Name != eventReady {
		t.Fatalf("Next() event = %q, want %q", ev.Name, eventReady)
	}

	if it.engine.state != stateLive {
		t.Fatalf("engine.state = %v after READY, want %v", it.engine.state, stateLive)
	}
	if !it.engine.session.canResume() {
		t.Fatalf("session.canResume() = false after READY, want true")
	}
}
