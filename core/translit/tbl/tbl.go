// Package tbl parses the line-oriented transliteration table format.
//
// A table is a sequence of entries, one per line by convention:
//
//	# comment
//	U+2026 "..."                      single codepoint
//	U+2018..U+2019 "'"                range sharing one replacement
//	U+0410..U+0413 ["A" "B" "V" "G"]  range with one replacement per codepoint
//
// Replacement strings use Go double-quoted string syntax, so `"\""` is a
// double quote and `""` maps a codepoint to nothing.
package tbl

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
)

// Position locates an entry in its source.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Entry is one parsed table line. Repl holds a single shared replacement or
// exactly Hi-Lo+1 replacements.
type Entry struct {
	Pos  Position
	Lo   rune
	Hi   rune
	Repl []string
}

//nolint:govet // participle grammar tags are not standard struct tags
type tableGrammar struct {
	Entries []*entryGrammar `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type entryGrammar struct {
	Pos  lexer.Position
	Lo   string   `@Codepoint`
	Hi   string   `( ".." @Codepoint )?`
	One  *string  `( @String`
	List bool     `| @"["`
	Each []string `  @String* "]" )`
}

// tableLexer defines the tokens of the table format. Comments run to end of line.
var tableLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Codepoint", Pattern: `[Uu]\+[0-9A-Fa-f]{4,6}`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Punct", Pattern: `\.\.|[\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var tableParser = participle.MustBuild[tableGrammar](
	participle.Lexer(tableLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
)

// Parse reads a whole table from r. The name is used in positions and errors.
func Parse(name string, r io.Reader) ([]Entry, error) {
	parsed, err := tableParser.Parse(name, r)
	if err != nil {
		return nil, &apperrors.ParseError{Format: "table", Path: name, Message: err.Error(), Err: err}
	}
	return convert(name, parsed)
}

// ParseString parses a table held in memory.
func ParseString(name, src string) ([]Entry, error) {
	return Parse(name, strings.NewReader(src))
}

func convert(name string, parsed *tableGrammar) ([]Entry, error) {
	entries := make([]Entry, 0, len(parsed.Entries))
	for _, g := range parsed.Entries {
		pos := Position{Filename: name, Line: g.Pos.Line, Column: g.Pos.Column}

		lo, err := ParseCodepoint(g.Lo)
		if err != nil {
			return nil, apperrors.NewParse("table", name, fmt.Sprintf("%s: %v", pos, err))
		}
		hi := lo
		if g.Hi != "" {
			if hi, err = ParseCodepoint(g.Hi); err != nil {
				return nil, apperrors.NewParse("table", name, fmt.Sprintf("%s: %v", pos, err))
			}
		}
		if hi < lo {
			return nil, apperrors.NewParse("table", name,
				fmt.Sprintf("%s: range end %s before start %s", pos, FormatCodepoint(hi), FormatCodepoint(lo)))
		}

		e := Entry{Pos: pos, Lo: lo, Hi: hi}
		switch {
		case g.One != nil:
			e.Repl = []string{*g.One}
		case g.List:
			if want := int(hi-lo) + 1; len(g.Each) != want {
				return nil, apperrors.NewParse("table", name,
					fmt.Sprintf("%s: range %s..%s needs %d replacements, got %d",
						pos, FormatCodepoint(lo), FormatCodepoint(hi), want, len(g.Each)))
			}
			e.Repl = g.Each
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseCodepoint parses "U+XXXX" notation (4 to 6 hex digits).
func ParseCodepoint(s string) (rune, error) {
	if len(s) < 3 || (s[0] != 'U' && s[0] != 'u') || s[1] != '+' {
		return 0, fmt.Errorf("invalid codepoint %q: expected U+XXXX", s)
	}
	n, err := strconv.ParseUint(s[2:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid codepoint %q: %w", s, err)
	}
	if n > utf8.MaxRune {
		return 0, fmt.Errorf("invalid codepoint %q: beyond U+10FFFF", s)
	}
	return rune(n), nil
}

// ParseRune accepts either a single character or "U+XXXX" notation.
func ParseRune(s string) (rune, error) {
	if r, size := utf8.DecodeRuneInString(s); size == len(s) && r != utf8.RuneError {
		return r, nil
	}
	return ParseCodepoint(s)
}

// FormatCodepoint renders r as "U+XXXX".
func FormatCodepoint(r rune) string {
	return fmt.Sprintf("U+%04X", r)
}

// Format writes entries back in table syntax.
func Format(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		var sb strings.Builder
		sb.WriteString(FormatCodepoint(e.Lo))
		if e.Hi != e.Lo {
			sb.WriteString("..")
			sb.WriteString(FormatCodepoint(e.Hi))
		}
		sb.WriteByte(' ')
		if len(e.Repl) == 1 {
			sb.WriteString(strconv.Quote(e.Repl[0]))
		} else {
			sb.WriteByte('[')
			for i, r := range e.Repl {
				if i > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(strconv.Quote(r))
			}
			sb.WriteByte(']')
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
