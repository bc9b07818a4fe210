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

import "testing"

func TestClassifyClose_KnownCodes(t *testing.T) {
	cases := []struct {
		code      int
		reconnect bool
	}{
		{4000, true},
		{4003, true},
		{4009, true},
		{4004, false},
		{4011, false},
		{4013, false},
		{4014, false},
	}

	for _, c := range cases {
		got := classifyClose(c.code)
		if got.Reconnect != c.reconnect {
			t.Errorf("classifyClose(%d).Reconnect = %v, want %v", c.code, got.Reconnect, c.reconnect)
		}
	}
}

func TestClassifyClose_UnknownCodeFailsClosed(t *testing.T) {
	got := classifyClose(4999)
	if got.Reconnect {
		t.Fatalf("classifyClose(4999).Reconnect = true, want false (unknown codes must fail closed)")
	}
}
