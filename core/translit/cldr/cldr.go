// Package cldr reads CLDR transform files as transliteration table entries.
//
// CLDR keeps its transliterators as rule text inside <tRule> elements:
//
//	<transform source="de" target="ASCII" direction="forward">
//	  <tRules><tRule>
//	    ä → ae ;   # umlaut
//	    ß → ss ;
//	    '€' → EUR ;
//	  </tRule></tRules>
//	</transform>
//
// Only unconditional rules from a single non-ASCII codepoint to ASCII text
// become entries. Rules with context, sets, variables or a cursor, backward
// rules, rules producing non-ASCII text and transform ids (::) are skipped.
// The first rule for a codepoint wins, as in CLDR.
package cldr

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/translit/tbl"
)

var ruleExpr = xpath.MustCompile("//tRule")

// syntaxChars have rule meaning outside quotes.
const syntaxChars = "{}[]|$&^()*+?@.=:"

// Result holds the entries read from one document and the number of rules
// that could not be expressed as entries.
type Result struct {
	Entries []tbl.Entry
	Skipped int
}

// Parse reads the rules of every <tRule> element in the document. Entry
// positions count lines of rule text across the document's rules.
func Parse(name string, r io.Reader) (*Result, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &apperrors.ParseError{Format: "CLDR transform", Path: name, Message: err.Error(), Err: err}
	}
	nodes := xmlquery.QuerySelectorAll(doc, ruleExpr)
	if len(nodes) == 0 {
		return nil, &apperrors.ParseError{Format: "CLDR transform", Path: name, Message: "no tRule elements"}
	}

	res := &Result{}
	seen := make(map[rune]bool)
	line := 1
	for _, n := range nodes {
		text := n.InnerText()
		for _, st := range statements(text, line) {
			c, repl, ok := rule(st.text)
			if !ok {
				res.Skipped++
				continue
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			res.Entries = append(res.Entries, tbl.Entry{
				Pos:  tbl.Position{Filename: name, Line: st.line, Column: 1},
				Lo:   c,
				Hi:   c,
				Repl: []string{repl},
			})
		}
		line += strings.Count(text, "\n") + 1
	}
	return res, nil
}

type statement struct {
	text string
	line int
}

// statements splits rule text at unquoted semicolons and drops comments.
func statements(text string, line int) []statement {
	var out []statement
	var sb strings.Builder
	start, blank := line, true
	quoted, escaped, comment := false, false, false
	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, statement{text: s, line: start})
		}
		sb.Reset()
		blank = true
	}

	for _, c := range text {
		if c == '\n' {
			line++
			comment = false
		}
		if comment {
			continue
		}
		switch {
		case escaped:
			escaped = false
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '\\':
			escaped = true
		case c == '#':
			comment = true
			continue
		case c == ';':
			flush()
			continue
		}
		if blank && !unicode.IsSpace(c) {
			start, blank = line, false
		}
		sb.WriteRune(c)
	}
	flush()
	return out
}

// rule converts one statement into a codepoint and its ASCII replacement.
func rule(s string) (rune, string, bool) {
	if strings.HasPrefix(s, "::") {
		return 0, "", false
	}
	lhs, arrow, rhs, ok := splitArrow(s)
	if !ok || arrow == "←" || arrow == "<" {
		return 0, "", false
	}
	src, ok := literal(lhs)
	if !ok || utf8.RuneCountInString(src) != 1 {
		return 0, "", false
	}
	c, _ := utf8.DecodeRuneInString(src)
	if c < utf8.RuneSelf {
		return 0, "", false
	}
	repl, ok := literal(rhs)
	if !ok || !isASCII(repl) {
		return 0, "", false
	}
	return c, repl, true
}

// splitArrow finds the first unquoted rule operator.
func splitArrow(s string) (lhs, arrow, rhs string, ok bool) {
	quoted, escaped := false, false
	for i, c := range s {
		switch {
		case escaped:
			escaped = false
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '\\':
			escaped = true
		case c == '→' || c == '↔' || c == '←':
			return s[:i], string(c), s[i+utf8.RuneLen(c):], true
		case c == '<' && strings.HasPrefix(s[i:], "<>"):
			return s[:i], "<>", s[i+2:], true
		case c == '<' || c == '>':
			return s[:i], string(c), s[i+1:], true
		}
	}
	return "", "", "", false
}

// literal resolves quotes and escapes in one side of a rule. Unquoted
// whitespace is ignored; unquoted syntax characters make the side
// unrepresentable.
func literal(s string) (string, bool) {
	rs := []rune(s)
	var sb strings.Builder
	quoted := false
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '\'':
			if i+1 < len(rs) && rs[i+1] == '\'' {
				sb.WriteRune('\'')
				i++
				continue
			}
			quoted = !quoted
		case quoted:
			sb.WriteRune(c)
		case c == '\\':
			r, n, err := unescape(rs[i+1:])
			if err != nil {
				return "", false
			}
			sb.WriteRune(r)
			i += n
		case unicode.IsSpace(c):
		case strings.ContainsRune(syntaxChars, c):
			return "", false
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String(), !quoted
}

// unescape decodes the escape following a backslash and reports how many
// runes it used.
func unescape(rest []rune) (rune, int, error) {
	if len(rest) == 0 {
		return 0, 0, fmt.Errorf("dangling backslash")
	}
	digits := 0
	switch rest[0] {
	case 'u':
		digits = 4
	case 'U':
		digits = 8
	default:
		return rest[0], 1, nil
	}
	if len(rest) < digits+1 {
		return 0, 0, fmt.Errorf("short \\%c escape", rest[0])
	}
	n, err := strconv.ParseUint(string(rest[1:digits+1]), 16, 32)
	if err != nil || n > utf8.MaxRune {
		return 0, 0, fmt.Errorf("bad \\%c escape", rest[0])
	}
	return rune(n), digits + 1, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
