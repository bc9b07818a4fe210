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

import "encoding/json"

// gatewayOpcode identifies the kind of payload carried by an Envelope.
//
// https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-opcodes
type gatewayOpcode int

const (
	opDispatch            gatewayOpcode = 0
	opHeartbeat           gatewayOpcode = 1
	opIdentify            gatewayOpcode = 2
	opPresenceUpdate      gatewayOpcode = 3
	opVoiceStateUpdate    gatewayOpcode = 4
	opResume              gatewayOpcode = 6
	opReconnect           gatewayOpcode = 7
	opRequestGuildMembers gatewayOpcode = 8
	opInvalidSession      gatewayOpcode = 9
	opHello               gatewayOpcode = 10
	opHeartbeatACK        gatewayOpcode = 11
)

// Dispatch event names the engine recognizes directly; all other `t` values
// are opaque and forwarded to the caller verbatim.
const (
	eventReady   = "READY"
	eventResumed = "RESUMED"
)

// Envelope is the on-the-wire Gateway payload shape.
//
// d is left as raw JSON: payload bodies are opaque to the engine (spec.md
// §1) except for the handful of control payloads (Hello, Ready, Invalid
// Session) the protocol state machine itself must inspect.
type Envelope struct {
	Op gatewayOpcode   `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  *string         `json:"t,omitempty"`
}

// helloData is the payload of an Opcode 10 Hello envelope.
type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// readyData is the subset of the Opcode 0 READY payload the engine cares
// about; the rest of the body is forwarded to the caller untouched.
type readyData struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}

// identifyConnectionProperties describes the client environment sent with
// an Identify payload.
type identifyConnectionProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// identifyPayload is the Opcode 2 Identify payload body.
type identifyPayload struct {
	Token      string                       `json:"token"`
	Properties identifyConnectionProperties `json:"properties"`
	Intents    GatewayIntent                `json:"intents"`
	Presence   *PresenceUpdate              `json:"presence,omitempty"`
}

// resumePayload is the Opcode 6 Resume payload body. Seq is a pointer so
// it marshals as null rather than 0 when no sequence has been observed
// yet, matching original_source's `seq=self.__sequence` (spec.md §8
// invariant 4).
type resumePayload struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       *int64 `json:"seq"`
}

// PresenceUpdate is the body of an Opcode 3 Presence Update sent by the
// client (spec.md §6).
type PresenceUpdate struct {
	Since      *int64             `json:"since"`
	Activities []PresenceActivity `json:"activities"`
	Status     PresenceStatus     `json:"status"`
	AFK        bool               `json:"afk"`
}

// PresenceActivity is a single activity entry of a PresenceUpdate. Only the
// fields the Gateway requires on the client->server path are modeled; the
// full activity catalog is a REST/type-catalog concern out of scope here.
type PresenceActivity struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	URL  string `json:"url,omitempty"`
}

// PresenceStatus is the online/idle/dnd/invisible/offline status string.
type PresenceStatus string

const (
	PresenceStatusOnline    PresenceStatus = "online"
	PresenceStatusDND       PresenceStatus = "dnd"
	PresenceStatusIdle      PresenceStatus = "idle"
	PresenceStatusInvisible PresenceStatus = "invisible"
	PresenceStatusOffline   PresenceStatus = "offline"
)

// Event is a decoded dispatch delivered to the caller by Iterator.Next.
type Event struct {
	// Name is the dispatch event name (the envelope's `t` field).
	Name string
	// Data is the envelope's raw `d` payload, forwarded unparsed.
	Data []byte
}
