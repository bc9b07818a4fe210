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
	"fmt"
	"time"
)

// ErrNotConnected is returned when an operation requiring a live or
// resuming session is attempted outside of those states.
//
// https://discord.com/developers/docs/topics/gateway
var ErrNotConnected = errors.New("dwazgw: session is not connected")

// errReadTimeout signals that the transport yielded no frame within the
// configured deadline. It is handled internally as a heartbeat tick and is
// never returned to the caller (spec.md §7).
var errReadTimeout = errors.New("dwazgw: read timeout")

// AckMissingError reports that the Gateway failed to acknowledge a
// Heartbeat before the next one was due. Recovered internally by resuming;
// only surfaced to the caller if the resume attempt itself fails, wrapped
// together with that resume error (both reachable via errors.As/errors.Is).
type AckMissingError struct {
	LastSent time.Time
	Interval time.Duration
}

func (e *AckMissingError) Error() string {
	return fmt.Sprintf("dwazgw: no heartbeat ack received since %s (interval %s)", e.LastSent, e.Interval)
}

// GatewayClosedError reports a non-resumable server close. It terminates
// the Iterator.
type GatewayClosedError struct {
	Code   int
	Reason string
}

func (e *GatewayClosedError) Error() string {
	return fmt.Sprintf("dwazgw: gateway closed connection with code %d: %s", e.Code, e.Reason)
}

// ProtocolViolationError reports an unknown opcode, a malformed envelope,
// or an unexpected frame type (e.g. a text frame on a zlib-stream socket).
type ProtocolViolationError struct {
	Detail string
}

func (e *ProtocolViolationError) Error() string {
	return "dwazgw: protocol violation: " + e.Detail
}

// PayloadTooLargeError is returned when an outbound envelope's UTF-8 JSON
// encoding exceeds maxOutboundPayloadBytes. The payload is never written
// to the socket.
type PayloadTooLargeError struct {
	Size int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("dwazgw: outbound payload of %d bytes exceeds the %d byte limit", e.Size, maxOutboundPayloadBytes)
}

// RestFailureError wraps an error returned by the REST collaborator during
// Gateway URL discovery.
type RestFailureError struct {
	Err error
}

func (e *RestFailureError) Error() string {
	return fmt.Sprintf("dwazgw: rest failure during gateway discovery: %v", e.Err)
}

func (e *RestFailureError) Unwrap() error {
	return e.Err
}
