// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package planner

// nameGenerator yields the deterministic short-identifier sequence
// a..z, aa..zz, aaa..., skipping keywords, builtins, "_", and any name
// in the avoid set. State is reset per function: each function's
// renames start over at "a".
type nameGenerator struct {
	counter int
	avoid   map[string]bool
	issued  map[string]bool
}

func newNameGenerator(avoid map[string]bool) *nameGenerator {
	return &nameGenerator{avoid: avoid, issued: make(map[string]bool)}
}

// next returns the next usable candidate for original. Colliding
// candidates are skipped, not numbered around. A candidate equal to
// original itself is allowed through: the caller drops the identity
// rename, which is what keeps re-planning already-minified source
// quiet.
func (g *nameGenerator) next(original string) string {
	for {
		candidate := encodeIdentifier(g.counter)
		g.counter++
		if keywordSet[candidate] || builtinSet[candidate] || candidate == "_" {
			continue
		}
		if g.issued[candidate] {
			continue
		}
		if g.avoid[candidate] && candidate != original {
			continue
		}
		g.issued[candidate] = true
		return candidate
	}
}

// encodeIdentifier renders value in base 26 over a..z with one-letter
// numerals starting at position 0 (0 -> "a", 25 -> "z", 26 -> "aa").
func encodeIdentifier(value int) string {
	var buf []byte
	for {
		buf = append(buf, byte('a'+value%26))
		value /= 26
		if value == 0 {
			break
		}
		value--
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
