// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pysrc

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"

	"github.com/petar-djukic/pytrim/pkg/types"
)

// Buffer pairs the decoded UTF-8 text the parsers run on with a
// bidirectional offset index back to the original file bytes. Plans
// persist ranges in the original buffer's encoded bytes (BOM
// included), so every range crossing the plan boundary goes through
// ToEncoded/ToDecoded.
type Buffer struct {
	Text []byte // decoded UTF-8, BOM stripped
	Info SourceInfo

	// bomShift is the byte length of a leading BOM, applied when the
	// charset itself is UTF-8 and no per-rune table is needed.
	bomShift int
	// toEnc[decodedOff] = encoded offset; nil when the mapping is
	// identity plus bomShift.
	toEnc []int
	// toDec[encodedOff] = decoded offset, -1 between rune boundaries.
	toDec []int
}

// NewBuffer detects the source encoding, decodes raw, and builds the
// offset index.
func NewBuffer(raw []byte) (*Buffer, error) {
	text, info, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	buf := &Buffer{Text: text, Info: info}
	if info.BOM {
		buf.bomShift = len(utf8BOM)
	}
	if isUTF8Name(info.Encoding) {
		return buf, nil
	}

	enc, err := lookupEncoding(info.Encoding)
	if err != nil {
		return nil, err
	}
	if err := buf.buildOffsetIndex(len(raw), enc.NewEncoder()); err != nil {
		return nil, err
	}
	return buf, nil
}

// Identity reports whether decoded and encoded offsets coincide.
func (b *Buffer) Identity() bool {
	return b.toEnc == nil && b.bomShift == 0
}

// buildOffsetIndex walks the decoded runes, re-encoding each one to
// learn its width in the original charset.
func (b *Buffer) buildOffsetIndex(encodedLen int, encoder *encoding.Encoder) error {
	b.toEnc = make([]int, len(b.Text)+1)
	b.toDec = make([]int, encodedLen+1)
	for i := range b.toDec {
		b.toDec[i] = -1
	}

	decPos, encPos := 0, b.bomShift
	var scratch [utf8.UTFMax]byte
	for decPos < len(b.Text) {
		b.toEnc[decPos] = encPos
		if encPos <= encodedLen {
			b.toDec[encPos] = decPos
		}
		_, size := utf8.DecodeRune(b.Text[decPos:])
		n := copy(scratch[:], b.Text[decPos:decPos+size])
		out, err := encoder.Bytes(scratch[:n])
		if err != nil {
			return err
		}
		// Non-boundary decoded positions inherit the rune's start.
		for i := 1; i < size; i++ {
			b.toEnc[decPos+i] = encPos
		}
		decPos += size
		encPos += len(out)
	}
	b.toEnc[len(b.Text)] = encPos
	if encPos <= encodedLen {
		b.toDec[encPos] = len(b.Text)
	}
	return nil
}

// ToEncoded maps a decoded-buffer offset to the original encoded-byte
// offset.
func (b *Buffer) ToEncoded(off int) int {
	if b.toEnc == nil {
		return off + b.bomShift
	}
	if off < 0 || off >= len(b.toEnc) {
		return -1
	}
	return b.toEnc[off]
}

// ToDecoded maps an original encoded-byte offset to the decoded
// buffer, or -1 when the offset does not land on a rune boundary (a
// drifted plan).
func (b *Buffer) ToDecoded(off int) int {
	if b.toDec == nil {
		dec := off - b.bomShift
		if dec < 0 || dec > len(b.Text) {
			return -1
		}
		if dec < len(b.Text) && !utf8.RuneStart(b.Text[dec]) {
			return -1
		}
		return dec
	}
	if off < 0 || off >= len(b.toDec) {
		return -1
	}
	return b.toDec[off]
}

// EncodedRange converts a decoded-space range for persisting in a plan.
func (b *Buffer) EncodedRange(r types.Range) types.Range {
	return types.Range{Start: b.ToEncoded(r.Start), End: b.ToEncoded(r.End)}
}

// DecodedRange converts a plan range for use against Text. A range
// with any unmappable endpoint comes back as {-1, -1} so lookups fail
// loudly instead of landing mid-rune.
func (b *Buffer) DecodedRange(r types.Range) types.Range {
	start, end := b.ToDecoded(r.Start), b.ToDecoded(r.End)
	if start < 0 || end < 0 {
		return types.Range{Start: -1, End: -1}
	}
	return types.Range{Start: start, End: end}
}
