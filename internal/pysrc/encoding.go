// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pysrc

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// utf8BOM is the byte-order mark stripped before decoding and restored
// on encode.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// codingCookie matches a PEP 263 encoding declaration. Only the first
// two lines of a file may carry one.
var codingCookie = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*([-_.a-zA-Z0-9]+)`)

// SourceInfo captures everything the rewriter must reproduce when it
// re-encodes output: charset, BOM, line-ending style, and whether the
// file ended with a newline.
type SourceInfo struct {
	Encoding     string // IANA charset name, lowercase; "utf-8" by default
	BOM          bool
	LineEnding   string // "\n", "\r\n", or "\r"
	FinalNewline bool
}

// DetectSourceInfo inspects raw file bytes without decoding them.
func DetectSourceInfo(raw []byte) SourceInfo {
	info := SourceInfo{Encoding: "utf-8", LineEnding: "\n"}
	body := raw
	if bytes.HasPrefix(raw, utf8BOM) {
		info.BOM = true
		body = raw[len(utf8BOM):]
	}
	if name := cookieEncoding(body); name != "" {
		info.Encoding = name
	}
	info.LineEnding = detectLineEnding(body)
	info.FinalNewline = len(body) > 0 &&
		(body[len(body)-1] == '\n' || body[len(body)-1] == '\r')
	return info
}

// cookieEncoding returns the declared charset from the first two
// lines, or "".
func cookieEncoding(body []byte) string {
	rest := body
	for line := 0; line < 2 && len(rest) > 0; line++ {
		idx := bytes.IndexByte(rest, '\n')
		var current []byte
		if idx < 0 {
			current, rest = rest, nil
		} else {
			current, rest = rest[:idx], rest[idx+1:]
		}
		if m := codingCookie.FindSubmatch(current); m != nil {
			return strings.ToLower(string(m[1]))
		}
	}
	return ""
}

func detectLineEnding(body []byte) string {
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\n':
			return "\n"
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				return "\r\n"
			}
			return "\r"
		}
	}
	return "\n"
}

// Decode converts raw file bytes into the UTF-8 buffer all analysis
// runs on. The BOM is stripped. Plan byte ranges address the original
// encoded bytes, not this buffer; Buffer carries the offset index
// between the two.
func Decode(raw []byte) ([]byte, SourceInfo, error) {
	info := DetectSourceInfo(raw)
	body := raw
	if info.BOM {
		body = raw[len(utf8BOM):]
	}
	if isUTF8Name(info.Encoding) {
		return body, info, nil
	}
	enc, err := lookupEncoding(info.Encoding)
	if err != nil {
		return nil, info, err
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, info, fmt.Errorf("decoding %s source: %w", info.Encoding, err)
	}
	return decoded, info, nil
}

// Encode converts the UTF-8 buffer back to the detected input
// encoding, restoring the BOM if one was present.
func Encode(text []byte, info SourceInfo) ([]byte, error) {
	body := text
	if !isUTF8Name(info.Encoding) {
		enc, err := lookupEncoding(info.Encoding)
		if err != nil {
			return nil, err
		}
		encoded, err := enc.NewEncoder().Bytes(text)
		if err != nil {
			return nil, fmt.Errorf("encoding %s output: %w", info.Encoding, err)
		}
		body = encoded
	}
	if info.BOM {
		out := make([]byte, 0, len(utf8BOM)+len(body))
		out = append(out, utf8BOM...)
		return append(out, body...), nil
	}
	return body, nil
}

func isUTF8Name(name string) bool {
	switch strings.ToLower(name) {
	case "utf-8", "utf8", "u8", "ascii", "us-ascii":
		// ASCII is a strict UTF-8 subset; no transcoding needed.
		return true
	}
	return false
}

// codecAliases maps common Python codec spellings onto the IANA names
// the x/text index understands.
var codecAliases = map[string]string{
	"latin":      "iso-8859-1",
	"latin1":     "iso-8859-1",
	"latin-1":    "iso-8859-1",
	"iso8859-1":  "iso-8859-1",
	"iso8859_1":  "iso-8859-1",
	"iso-8859-1": "iso-8859-1",
	"cp1252":     "windows-1252",
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	lowered := strings.ToLower(name)
	if alias, ok := codecAliases[lowered]; ok {
		lowered = alias
	}
	enc, err := ianaindex.IANA.Encoding(lowered)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported source encoding %q", name)
	}
	return enc, nil
}
