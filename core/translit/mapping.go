package translit

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"iter"
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/zeebo/blake3"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
)

// Range maps the codepoints Lo..Hi (inclusive) to ASCII replacements.
//
// Repl holds either one template shared by every codepoint in the range, or
// exactly Hi-Lo+1 templates indexed by offset from Lo. A template may be
// empty, which drops the codepoint.
type Range struct {
	Lo   rune
	Hi   rune
	Repl []string
}

// Size returns the number of codepoints covered by the range.
func (r Range) Size() int {
	return int(r.Hi-r.Lo) + 1
}

// Shared reports whether all codepoints of the range use one template.
func (r Range) Shared() bool {
	return len(r.Repl) == 1
}

// At returns the template for c, which must lie within the range.
func (r Range) At(c rune) string {
	if len(r.Repl) == 1 {
		return r.Repl[0]
	}
	return r.Repl[c-r.Lo]
}

// Mapping is an immutable, sorted set of non-overlapping ranges. It is safe
// for concurrent use.
type Mapping struct {
	ranges     []Range
	codepoints int
	digest     string
}

// NewMapping validates ranges and returns a Mapping holding its own copy of
// them. Ranges must be sorted, non-overlapping, lie outside ASCII, and carry
// only ASCII templates.
func NewMapping(ranges []Range) (*Mapping, error) {
	owned := make([]Range, len(ranges))
	var prev rune = -1
	for i, r := range ranges {
		if err := validateRange(r); err != nil {
			return nil, err
		}
		if r.Lo <= prev {
			return nil, apperrors.NewValidation("ranges",
				fmt.Sprintf("range U+%04X..U+%04X overlaps or precedes U+%04X", r.Lo, r.Hi, prev))
		}
		prev = r.Hi
		owned[i] = Range{Lo: r.Lo, Hi: r.Hi, Repl: slices.Clone(r.Repl)}
	}
	return newMapping(owned), nil
}

// newMapping wraps ranges that are already known to be valid.
func newMapping(ranges []Range) *Mapping {
	m := &Mapping{ranges: ranges}
	for _, r := range ranges {
		m.codepoints += r.Size()
	}
	m.digest = computeDigest(ranges)
	return m
}

func validateRange(r Range) error {
	switch {
	case r.Lo < utf8.RuneSelf:
		return apperrors.NewValidation("ranges", fmt.Sprintf("range U+%04X..U+%04X covers ASCII", r.Lo, r.Hi))
	case r.Hi < r.Lo:
		return apperrors.NewValidation("ranges", fmt.Sprintf("range U+%04X..U+%04X is reversed", r.Lo, r.Hi))
	case r.Hi > utf8.MaxRune:
		return apperrors.NewValidation("ranges", fmt.Sprintf("range U+%04X..U+%04X exceeds U+10FFFF", r.Lo, r.Hi))
	case len(r.Repl) != 1 && len(r.Repl) != r.Size():
		return apperrors.NewValidation("ranges",
			fmt.Sprintf("range U+%04X..U+%04X has %d templates, want 1 or %d", r.Lo, r.Hi, len(r.Repl), r.Size()))
	}
	for _, s := range r.Repl {
		if !isASCII(s) {
			return &apperrors.ValidationError{Field: "ranges", Value: s,
				Message: fmt.Sprintf("range U+%04X..U+%04X has non-ASCII template %q", r.Lo, r.Hi, s)}
		}
	}
	return nil
}

// Lookup returns the template for c. The second result is false when no
// range covers c.
func (m *Mapping) Lookup(c rune) (string, bool) {
	if c < utf8.RuneSelf || len(m.ranges) == 0 {
		return "", false
	}
	// First range whose end is at or past c.
	i := sort.Search(len(m.ranges), func(i int) bool { return m.ranges[i].Hi >= c })
	if i == len(m.ranges) || m.ranges[i].Lo > c {
		return "", false
	}
	return m.ranges[i].At(c), true
}

// Len returns the number of ranges.
func (m *Mapping) Len() int {
	return len(m.ranges)
}

// Codepoints returns the number of codepoints covered by the mapping.
func (m *Mapping) Codepoints() int {
	return m.codepoints
}

// Ranges iterates the ranges in ascending order. Yielded ranges are copies.
func (m *Mapping) Ranges() iter.Seq[Range] {
	return func(yield func(Range) bool) {
		for _, r := range m.ranges {
			if !yield(Range{Lo: r.Lo, Hi: r.Hi, Repl: slices.Clone(r.Repl)}) {
				return
			}
		}
	}
}

// Digest returns the hex BLAKE3 fingerprint of the mapping contents. Two
// mappings with the same digest transliterate identically.
func (m *Mapping) Digest() string {
	return m.digest
}

func computeDigest(ranges []Range) string {
	var buf bytes.Buffer
	var scratch [4]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(scratch[:], v)
		buf.Write(scratch[:])
	}
	for _, r := range ranges {
		putU32(uint32(r.Lo))
		putU32(uint32(r.Hi))
		putU32(uint32(len(r.Repl)))
		for _, s := range r.Repl {
			putU32(uint32(len(s)))
			buf.WriteString(s)
		}
	}
	sum := blake3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
