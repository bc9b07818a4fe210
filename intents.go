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

// GatewayIntent is a bitmask selecting which event categories the Gateway
// will send to this session (spec.md GLOSSARY: Intent).
//
// https://discord.com/developers/docs/events/gateway#list-of-intents
type GatewayIntent uint32

const (
	GatewayIntentGuilds                       GatewayIntent = 1 << 0
	GatewayIntentGuildMembers                 GatewayIntent = 1 << 1
	GatewayIntentGuildModeration               GatewayIntent = 1 << 2
	GatewayIntentGuildEmojisAndStickers        GatewayIntent = 1 << 3
	GatewayIntentGuildIntegrations             GatewayIntent = 1 << 4
	GatewayIntentGuildWebhooks                 GatewayIntent = 1 << 5
	GatewayIntentGuildInvites                  GatewayIntent = 1 << 6
	GatewayIntentGuildVoiceStates              GatewayIntent = 1 << 7
	GatewayIntentGuildPresences                GatewayIntent = 1 << 8
	GatewayIntentGuildMessages                 GatewayIntent = 1 << 9
	GatewayIntentGuildMessageReactions         GatewayIntent = 1 << 10
	GatewayIntentGuildMessageTyping            GatewayIntent = 1 << 11
	GatewayIntentDirectMessages                GatewayIntent = 1 << 12
	GatewayIntentDirectMessageReactions        GatewayIntent = 1 << 13
	GatewayIntentDirectMessageTyping           GatewayIntent = 1 << 14
	GatewayIntentMessageContent                GatewayIntent = 1 << 15
	GatewayIntentGuildScheduledEvents          GatewayIntent = 1 << 16
	GatewayIntentAutoModerationConfiguration   GatewayIntent = 1 << 20
	GatewayIntentAutoModerationExecution       GatewayIntent = 1 << 21
)

// BitField is a type constraint that matches any integer type. It
// represents a value that can be used as a bitfield to store multiple
// boolean flags using bitwise operations.
type BitField interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// BitMaskAdd returns a new bitfield with the specified bitmasks set.
//
// Example:
//
//	intents = BitMaskAdd(intents, GatewayIntentGuilds, GatewayIntentGuildMessages)
func BitMaskAdd[T BitField](bitfield T, bitmasks ...T) T {
	for _, bitmask := range bitmasks {
		bitfield |= bitmask
	}
	return bitfield
}

// BitMaskRemove returns a new bitfield with the specified bitmasks cleared.
func BitMaskRemove[T BitField](bitfield T, bitmasks ...T) T {
	for _, bitmask := range bitmasks {
		bitfield &^= bitmask
	}
	return bitfield
}

// BitMaskHas reports whether the given bitfield contains all of the
// specified bitmasks.
func BitMaskHas[T BitField](bitfield T, bitmasks ...T) bool {
	for _, bitmask := range bitmasks {
		if bitfield&bitmask != bitmask {
			return false
		}
	}
	return true
}

// BitMaskMissing returns a bitfield containing the subset of bitmasks that
// are not present in the given bitfield.
func BitMaskMissing[T BitField](bitfield T, bitmasks ...T) T {
	var missing T
	for _, bitmask := range bitmasks {
		if bitfield&bitmask == 0 {
			missing |= bitmask
		}
	}
	return missing
}
