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
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

const (
	apiVersion  = "10"
	baseAPIURL  = "https://discord.com/api/v" + apiVersion
	defaultUA   = "DiscordBot (https://github.com/marouanesouiri/dwazgw, 0.1.0)"
)

// GatewayDiscoverer is the REST collaborator consumed by the engine: the
// single `get_gateway() -> {url}` operation spec.md §1/§6 describes. It is
// treated as an external collaborator and deliberately not detailed beyond
// this one operation (no rate-limit bucketing, no resource catalog).
type GatewayDiscoverer interface {
	GetGateway(ctx context.Context) (string, error)
}

// httpGatewayDiscoverer is the default GatewayDiscoverer, performing
// GET /gateway over HTTP/1.1 or HTTP/2 with redirects followed and a
// configurable User-Agent, per spec.md §6.
//
// Grounded on the teacher's requester.go HTTP client setup, stripped of
// its per-route rate-limit bucketing (out of scope: spec.md Non-goals).
type httpGatewayDiscoverer struct {
	client    *http.Client
	userAgent string
}

func newHTTPGatewayDiscoverer(userAgent string) *httpGatewayDiscoverer {
	if userAgent == "" {
		userAgent = defaultUA
	}

	return &httpGatewayDiscoverer{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
			},
		},
	}
}

func (d *httpGatewayDiscoverer) GetGateway(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseAPIURL+"/gateway", nil)
	if err != nil {
		return "", fmt.Errorf("dwazgw: building gateway discovery request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dwazgw: gateway discovery returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("dwazgw: reading gateway discovery response: %w", err)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("dwazgw: decoding gateway discovery response: %w", err)
	}

	return body.URL, nil
}

// gatewayURLCache memoizes the Gateway URL discovered via REST. It is
// process-wide and is never invalidated by the engine itself (spec.md
// §4.5/§9): a caller that wants to force rediscovery — e.g. after
// suspecting the cached URL is stale — calls the package-level
// ResetGatewayURLCache.
//
// Grounded on the teacher's `gateway`/`gatewayBot` structs (gateway.go),
// which mirror the same REST response, and on
// original_source/_client/_gateway.py's `Gateway.__URL` class attribute —
// the direct model for "process-wide state scoped to the engine type".
type gatewayURLCache struct {
	mu  sync.Mutex
	url string
}

var sharedGatewayURLCache gatewayURLCache

// get returns the cached URL, discovering it via discoverer on first miss.
func (c *gatewayURLCache) get(ctx context.Context, discoverer GatewayDiscoverer) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.url != "" {
		return c.url, nil
	}

	url, err := discoverer.GetGateway(ctx)
	if err != nil {
		return "", &RestFailureError{Err: err}
	}

	c.url = url

	return c.url, nil
}

// reset clears the cached URL so the next get re-discovers it.
func (c *gatewayURLCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.url = ""
}

// ResetGatewayURLCache clears the process-wide cached Gateway URL, forcing
// the next Open (or reconnect) to rediscover it via REST rather than
// reusing a URL that may no longer be valid (spec.md §4.5: the engine must
// be able to force rediscovery externally). gatewayURLCache itself stays
// unexported — this is the only external hook into it.
func ResetGatewayURLCache() {
	sharedGatewayURLCache.reset()
}
