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

// gatewayCloseCode describes a Discord Gateway close event code: whether
// the engine may attempt a resume, and a human description for logging.
//
// The original exdc implementation only special-cased code 4000 and
// treated every other close as fatal. This table replaces that single
// comparison per the REDESIGN FLAG in spec.md §9.
//
// https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-close-event-codes
type gatewayCloseCode struct {
	Code        int
	Description string
	Reconnect   bool
}

var gatewayCloseCodes = map[int]gatewayCloseCode{
	4000: {4000, "unknown error", true},
	4001: {4001, "unknown opcode", true},
	4002: {4002, "decode error", true},
	4003: {4003, "not authenticated", true},
	4004: {4004, "authentication failed", false},
	4005: {4005, "already authenticated", true},
	4007: {4007, "invalid seq", true},
	4008: {4008, "rate limited", true},
	4009: {4009, "session timed out", true},
	4010: {4010, "invalid shard", false},
	4011: {4011, "sharding required", false},
	4012: {4012, "invalid API version", false},
	4013: {4013, "invalid intent(s)", false},
	4014: {4014, "disallowed intent(s)", false},
}

// classifyClose looks up a server close code. Unknown codes are classified
// as fatal (fail closed), matching spec.md §4.3's "any non-4000 server
// close is fatal... unless the implementation adds finer-grained
// classification" with the finer-grained classification now applied.
func classifyClose(code int) gatewayCloseCode {
	if c, ok := gatewayCloseCodes[code]; ok {
		return c
	}

	return gatewayCloseCode{Code: code, Description: "unrecognized close code", Reconnect: false}
}
