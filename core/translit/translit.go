// Package translit transliterates Unicode text into approximate ASCII.
//
// A Mapping holds the codepoint table; an Engine walks input text and
// substitutes each codepoint with its ASCII template. ASCII input passes
// through untouched and codepoints the table does not cover are dropped,
// unless the Engine was built with a placeholder.
//
// The substitution is per codepoint and context-free. It does not normalise
// input or fold case.
package translit

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/transform"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
)

// Engine transliterates text with a fixed Mapping. It is immutable and safe
// for concurrent use.
type Engine struct {
	mapping     *Mapping
	placeholder string
}

// Option configures an Engine at construction.
type Option func(*Engine) error

// WithPlaceholder emits s for non-ASCII codepoints the mapping does not
// cover. Codepoints explicitly mapped to "" are still dropped.
func WithPlaceholder(s string) Option {
	return func(e *Engine) error {
		if !isASCII(s) {
			return &apperrors.ValidationError{Field: "placeholder", Value: s, Message: "must be ASCII"}
		}
		e.placeholder = s
		return nil
	}
}

// New returns an Engine over m.
func New(m *Mapping, opts ...Option) (*Engine, error) {
	if m == nil {
		return nil, apperrors.NewValidation("mapping", "must not be nil")
	}
	e := &Engine{mapping: m}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Mapping returns the table the engine reads from.
func (e *Engine) Mapping() *Mapping {
	return e.mapping
}

// Placeholder returns the configured placeholder, or "" if unmapped
// codepoints are dropped.
func (e *Engine) Placeholder() string {
	return e.placeholder
}

func (e *Engine) replacement(c rune) string {
	if repl, ok := e.mapping.Lookup(c); ok {
		return repl
	}
	return e.placeholder
}

// String transliterates s.
func (e *Engine) String(s string) string {
	if isASCII(s) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, c := range s {
		if c < utf8.RuneSelf {
			sb.WriteByte(byte(c))
			continue
		}
		sb.WriteString(e.replacement(c))
	}
	return sb.String()
}

// AppendString appends the transliteration of s to dst.
func (e *Engine) AppendString(dst []byte, s string) []byte {
	for _, c := range s {
		if c < utf8.RuneSelf {
			dst = append(dst, byte(c))
			continue
		}
		dst = append(dst, e.replacement(c)...)
	}
	return dst
}

// Bytes transliterates UTF-8 encoded b into a newly allocated slice.
func (e *Engine) Bytes(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		if b[0] < utf8.RuneSelf {
			out = append(out, b[0])
			b = b[1:]
			continue
		}
		c, size := utf8.DecodeRune(b)
		out = append(out, e.replacement(c)...)
		b = b[size:]
	}
	return out
}

// Transformer returns a transform.Transformer that streams the engine over
// a reader or writer. Each call returns an independent value.
func (e *Engine) Transformer() transform.Transformer {
	return &transformer{e: e}
}

type transformer struct {
	e *Engine
}

func (t *transformer) Reset() {}

func (t *transformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if b := src[nSrc]; b < utf8.RuneSelf {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = b
			nDst++
			nSrc++
			continue
		}

		c, size := utf8.DecodeRune(src[nSrc:])
		if c == utf8.RuneError && size == 1 && !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}
		repl := t.e.replacement(c)
		if nDst+len(repl) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], repl)
		nSrc += size
	}
	return nDst, nSrc, nil
}

// String transliterates s with the default engine.
func String(s string) string {
	return DefaultEngine().String(s)
}
