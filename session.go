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

// Session holds the identify parameters and resume credentials of a
// Gateway connection (spec.md §3).
//
// token/intents are immutable for the session's life; presence may be
// updated at any time via Iterator.SetPresence.
type Session struct {
	token    string
	intents  GatewayIntent
	presence *PresenceUpdate

	sessionID        string
	resumeGatewayURL string
	sequence         *int64
	ready            bool
}

// newSession constructs a Session for the given identify parameters.
func newSession(token string, intents GatewayIntent, presence *PresenceUpdate) *Session {
	return &Session{token: token, intents: intents, presence: presence}
}

// canResume reports whether resume credentials are populated.
func (s *Session) canResume() bool {
	return s.sessionID != "" && s.resumeGatewayURL != ""
}

// applyReady stores the resume credentials from a READY event, enforcing
// the invariant `ready ⇒ session_id≠∅ ∧ resume_gateway_url≠∅` by only ever
// setting the three fields together.
func (s *Session) applyReady(sessionID, resumeGatewayURL string) {
	s.sessionID = sessionID
	s.resumeGatewayURL = resumeGatewayURL
	s.ready = true
}

// dropCredentials clears resume credentials and sequence, used on a clean
// close or a non-resumable Invalid Session (spec.md §4.3).
func (s *Session) dropCredentials() {
	s.sessionID = ""
	s.resumeGatewayURL = ""
	s.sequence = nil
	s.ready = false
}

// updateSequence records the sequence number from any envelope whose `s`
// field is non-null, per spec.md §4.3 ("the engine must update sequence
// from every envelope with a non-null s, not only dispatches").
func (s *Session) updateSequence(seq *int64) {
	if seq != nil {
		s.sequence = seq
	}
}

// lastSequence returns the last observed sequence, or 0 if none has been
// observed yet.
func (s *Session) lastSequence() int64 {
	if s.sequence == nil {
		return 0
	}

	return *s.sequence
}

// sequencePtr returns the last observed sequence, or nil if none has been
// observed yet. HEARTBEAT's `d` and RESUME's `seq` use this rather than
// lastSequence so they marshal as null, not 0, before the first sequenced
// envelope (spec.md §8 invariant 4; original_source's `__sequence`
// defaults to `None`).
func (s *Session) sequencePtr() *int64 {
	return s.sequence
}

// setPresence updates the stored presence for future (re)connects.
func (s *Session) setPresence(p *PresenceUpdate) {
	s.presence = p
}
