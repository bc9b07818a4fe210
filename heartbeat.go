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
	"math/rand/v2"
	"time"
)

// heartbeatScheduler is pure time-driven bookkeeping: no goroutine, no
// channel, no I/O. spec.md §4.2/§5 requires heartbeat timing to be checked
// inline by the caller of the read loop rather than by a background timer.
type heartbeatScheduler struct {
	jitter float64 // drawn once per Session, preserved across resumes

	intervalMs     int64
	firstBeatDueAt time.Time // zero once cleared
	lastSentAt     time.Time // zero value means "never sent"
	lastAckAt      time.Time // zero value means "never acked"
}

// newHeartbeatScheduler draws the session's jitter value once, per
// spec.md §3/§9: "jitter is a session constant... so repeated reconnects
// from the same client don't phase-align with the server's interval."
func newHeartbeatScheduler() *heartbeatScheduler {
	return &heartbeatScheduler{jitter: rand.Float64()}
}

// onHello programs the first-beat timer from a newly received HELLO
// interval. Safe to call again on a resumed connection: the previous
// connection's send/ack timestamps are cleared, and the jitter itself is
// not redrawn.
func (h *heartbeatScheduler) onHello(intervalMs int64, now time.Time) {
	h.intervalMs = intervalMs
	h.firstBeatDueAt = now.Add(time.Duration(h.jitter * float64(intervalMs) * float64(time.Millisecond)))
	h.lastSentAt = time.Time{}
	h.lastAckAt = time.Time{}
}

// onBeatSent records that a Heartbeat was just sent and clears the
// first-beat timer (a no-op once it has already fired once).
func (h *heartbeatScheduler) onBeatSent(now time.Time) {
	h.lastSentAt = now
	h.firstBeatDueAt = time.Time{}
}

// onAck records a HeartbeatACK.
func (h *heartbeatScheduler) onAck(now time.Time) {
	h.lastAckAt = now
}

// interval returns the current heartbeat interval.
func (h *heartbeatScheduler) interval() time.Duration {
	return time.Duration(h.intervalMs) * time.Millisecond
}

// firstBeatDue reports whether the jittered first beat is due.
func (h *heartbeatScheduler) firstBeatDue(now time.Time) bool {
	return !h.firstBeatDueAt.IsZero() && !now.Before(h.firstBeatDueAt)
}

// nextBeatDue reports whether a subsequent beat is due.
func (h *heartbeatScheduler) nextBeatDue(now time.Time) bool {
	return !h.lastSentAt.IsZero() && now.After(h.lastSentAt.Add(h.interval()))
}

// outstanding reports whether a heartbeat was sent and has not yet been
// acknowledged.
func (h *heartbeatScheduler) outstanding() bool {
	return h.lastAckAt.IsZero() || h.lastSentAt.After(h.lastAckAt)
}

// ackMissing reports whether a heartbeat was due (first or subsequent) and
// the previous beat remains unacknowledged.
func (h *heartbeatScheduler) ackMissing(now time.Time) bool {
	return (h.firstBeatDue(now) || h.nextBeatDue(now)) && h.outstanding() && !h.lastSentAt.IsZero()
}

// beatDue reports whether either the first or a subsequent beat is due.
func (h *heartbeatScheduler) beatDue(now time.Time) bool {
	return h.firstBeatDue(now) || h.nextBeatDue(now)
}
