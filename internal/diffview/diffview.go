// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package diffview renders unified diffs for the --diff flag.
package diffview

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Unified renders a unified diff between before and after with the
// given number of context lines. Returns "" when the inputs match.
func Unified(path string, before, after string, context int) string {
	if before == after {
		return ""
	}
	if context < 0 {
		context = 0
	}

	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)

	type line struct {
		kind byte // ' ', '-', '+'
		text string
	}
	var all []line
	for _, d := range diffs {
		kind := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, text := range splitLines(d.Text) {
			all = append(all, line{kind: kind, text: text})
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", path, path)

	// Group changed lines into hunks with surrounding context.
	oldNo, newNo := 1, 1
	i := 0
	for i < len(all) {
		if all[i].kind == ' ' {
			oldNo++
			newNo++
			i++
			continue
		}
		// Hunk starts context lines back.
		start := i
		back := 0
		for start > 0 && all[start-1].kind == ' ' && back < context {
			start--
			back++
		}
		// Extend through changes separated by at most 2*context
		// equal lines.
		end := i
		for j := i; j < len(all); j++ {
			if all[j].kind != ' ' {
				end = j + 1
			} else if j-end >= 2*context {
				break
			}
		}
		stop := end
		forward := 0
		for stop < len(all) && all[stop].kind == ' ' && forward < context {
			stop++
			forward++
		}

		hunkOld := oldNo - back
		hunkNew := newNo - back
		oldCount, newCount := 0, 0
		var body strings.Builder
		for j := start; j < stop; j++ {
			body.WriteByte(all[j].kind)
			body.WriteString(all[j].text)
			body.WriteByte('\n')
			switch all[j].kind {
			case ' ':
				oldCount++
				newCount++
			case '-':
				oldCount++
			case '+':
				newCount++
			}
		}
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", hunkOld, oldCount, hunkNew, newCount)
		b.WriteString(body.String())

		for j := i; j < stop; j++ {
			switch all[j].kind {
			case ' ':
				oldNo++
				newNo++
			case '-':
				oldNo++
			case '+':
				newNo++
			}
		}
		i = stop
	}
	return b.String()
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
