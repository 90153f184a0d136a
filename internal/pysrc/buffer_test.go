// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pysrc

import (
	"bytes"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/pytrim/pkg/types"
)

func TestBuffer_IdentityForPlainUTF8(t *testing.T) {
	buf, err := NewBuffer([]byte("x = 1\n"))
	require.NoError(t, err)
	assert.True(t, buf.Identity())
	assert.Equal(t, 4, buf.ToEncoded(4))
	assert.Equal(t, 4, buf.ToDecoded(4))
}

func TestBuffer_BOMShift(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("x = 1\n")...)
	buf, err := NewBuffer(raw)
	require.NoError(t, err)
	assert.False(t, buf.Identity())
	assert.Equal(t, 3, buf.ToEncoded(0))
	assert.Equal(t, 0, buf.ToDecoded(3))
	// Offsets inside the BOM cannot map back.
	assert.Equal(t, -1, buf.ToDecoded(1))
}

func TestBuffer_Latin1OffsetsRoundTrip(t *testing.T) {
	raw := []byte("# coding: latin-1\ns = '\xE9\xE9'\nx = 1\n")
	buf, err := NewBuffer(raw)
	require.NoError(t, err)
	assert.False(t, buf.Identity())

	// The decoded buffer is longer: each é widens to two bytes.
	assert.Equal(t, len(raw)+2, len(buf.Text))

	// The statement after the é literal addresses its on-disk offset.
	rawX := bytes.Index(raw, []byte("x = 1"))
	decX := bytes.Index(buf.Text, []byte("x = 1"))
	assert.Equal(t, rawX, buf.ToEncoded(decX))
	assert.Equal(t, decX, buf.ToDecoded(rawX))

	// Every rune boundary round-trips.
	for dec := 0; dec <= len(buf.Text); {
		assert.Equal(t, dec, buf.ToDecoded(buf.ToEncoded(dec)), "offset %d", dec)
		if dec == len(buf.Text) {
			break
		}
		_, size := utf8.DecodeRune(buf.Text[dec:])
		dec += size
	}
}

func TestBuffer_DecodedRangeRejectsMidRune(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("def f():\n    pass\n")...)
	buf, err := NewBuffer(raw)
	require.NoError(t, err)
	bad := buf.DecodedRange(types.Range{Start: 1, End: 5})
	assert.Equal(t, types.Range{Start: -1, End: -1}, bad)

	good := buf.DecodedRange(types.Range{Start: 3, End: 3 + 3})
	assert.Equal(t, types.Range{Start: 0, End: 3}, good)
}
