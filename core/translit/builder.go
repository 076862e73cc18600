package translit

import (
	"fmt"
	"maps"
	"slices"
	"unicode/utf8"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/translit/tbl"
)

// Builder accumulates codepoint replacements and compiles them into a
// Mapping. Later writes to the same codepoint replace earlier ones, which is
// how table layers override each other.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	entries map[rune]string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{entries: make(map[rune]string)}
}

// Set maps c to repl. An empty repl drops c.
func (b *Builder) Set(c rune, repl string) error {
	if err := checkEntry(c, repl); err != nil {
		return err
	}
	b.entries[c] = repl
	return nil
}

// SetRange maps every codepoint in lo..hi to repl.
func (b *Builder) SetRange(lo, hi rune, repl string) error {
	if hi < lo {
		return apperrors.NewValidation("range", fmt.Sprintf("U+%04X..U+%04X is reversed", lo, hi))
	}
	if err := checkEntry(lo, repl); err != nil {
		return err
	}
	if err := checkEntry(hi, repl); err != nil {
		return err
	}
	for c := lo; c <= hi; c++ {
		b.entries[c] = repl
	}
	return nil
}

// SetEach maps lo+i to repls[i].
func (b *Builder) SetEach(lo rune, repls []string) error {
	for i, repl := range repls {
		if err := checkEntry(lo+rune(i), repl); err != nil {
			return err
		}
	}
	for i, repl := range repls {
		b.entries[lo+rune(i)] = repl
	}
	return nil
}

// Delete removes any replacement for c so that it falls back to the
// engine's unmapped behaviour.
func (b *Builder) Delete(c rune) {
	delete(b.entries, c)
}

// Len returns the number of codepoints currently mapped.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Merge applies parsed table entries in order.
func (b *Builder) Merge(entries []tbl.Entry) error {
	for _, e := range entries {
		var err error
		if len(e.Repl) == 1 {
			err = b.SetRange(e.Lo, e.Hi, e.Repl[0])
		} else {
			err = b.SetEach(e.Lo, e.Repl)
		}
		if err != nil {
			return apperrors.Wrapf(err, "%s", e.Pos)
		}
	}
	return nil
}

// Build compiles the current entries. Contiguous codepoints collapse into a
// single range, sharing one template when all of them agree. The Builder
// may be reused afterwards.
func (b *Builder) Build() *Mapping {
	keys := slices.Sorted(maps.Keys(b.entries))

	var ranges []Range
	for i := 0; i < len(keys); {
		j := i + 1
		for j < len(keys) && keys[j] == keys[j-1]+1 {
			j++
		}
		ranges = append(ranges, b.compress(keys[i:j])...)
		i = j
	}
	return newMapping(ranges)
}

// compress turns one contiguous run into ranges. Runs of identical templates
// become shared ranges; the rest are stored per codepoint.
func (b *Builder) compress(run []rune) []Range {
	const minShared = 4

	var out []Range
	var each []string
	eachLo := run[0]
	flush := func() {
		if len(each) > 0 {
			out = append(out, Range{Lo: eachLo, Hi: eachLo + rune(len(each)) - 1, Repl: each})
			each = nil
		}
	}

	for i := 0; i < len(run); {
		repl := b.entries[run[i]]
		j := i + 1
		for j < len(run) && b.entries[run[j]] == repl {
			j++
		}
		if j-i >= minShared || (i == 0 && j == len(run)) {
			flush()
			out = append(out, Range{Lo: run[i], Hi: run[j-1], Repl: []string{repl}})
		} else {
			if len(each) == 0 {
				eachLo = run[i]
			}
			for k := i; k < j; k++ {
				each = append(each, repl)
			}
		}
		i = j
	}
	flush()
	return out
}

func checkEntry(c rune, repl string) error {
	switch {
	case c < utf8.RuneSelf:
		return apperrors.NewValidation("codepoint", fmt.Sprintf("U+%04X is ASCII and cannot be remapped", c))
	case c > utf8.MaxRune:
		return apperrors.NewValidation("codepoint", fmt.Sprintf("U+%04X exceeds U+10FFFF", c))
	case !isASCII(repl):
		return &apperrors.ValidationError{Field: "replacement", Value: repl,
			Message: fmt.Sprintf("U+%04X maps to non-ASCII %q", c, repl)}
	}
	return nil
}
