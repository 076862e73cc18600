package translit

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/mozillazg/go-unidecode/table"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/translit/cldr"
	"github.com/FocuswithJustin/strutils/core/translit/data"
	"github.com/FocuswithJustin/strutils/core/translit/tbl"
	"github.com/FocuswithJustin/strutils/internal/logging"
)

// derivedBlocks lists the blocks whose compatibility decompositions are
// mined for ASCII spellings.
var derivedBlocks = []struct{ lo, hi rune }{
	{0x00A0, 0x00FF},   // Latin-1 Supplement
	{0x0100, 0x017F},   // Latin Extended-A
	{0x0180, 0x024F},   // Latin Extended-B
	{0x1E00, 0x1EFF},   // Latin Extended Additional
	{0x2000, 0x206F},   // General Punctuation
	{0x2070, 0x209F},   // Superscripts and Subscripts
	{0x2100, 0x214F},   // Letterlike Symbols
	{0x2150, 0x218F},   // Number Forms
	{0x2460, 0x24FF},   // Enclosed Alphanumerics
	{0xFB00, 0xFB4F},   // Alphabetic Presentation Forms
	{0xFF00, 0xFFEF},   // Halfwidth and Fullwidth Forms
	{0x1D400, 0x1D7FF}, // Mathematical Alphanumeric Symbols
}

// unidecodePlaceholder marks codepoints the unidecode tables have no
// spelling for.
const unidecodePlaceholder = "[?]"

// addDerived maps each codepoint whose NFKD form, stripped of nonspacing
// marks, is non-empty ASCII.
func addDerived(b *Builder) {
	strip := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	for _, blk := range derivedBlocks {
		for c := blk.lo; c <= blk.hi; c++ {
			out, _, err := transform.String(strip, string(c))
			if err != nil || out == "" || !isASCII(out) {
				continue
			}
			_ = b.Set(c, out)
		}
	}
}

// addUnidecode layers the unidecode section tables over b.
func addUnidecode(b *Builder) {
	for section, entries := range table.Tables {
		base := rune(section) << 8
		for i, repl := range entries {
			c := base + rune(i)
			if c < 0x80 || repl == unidecodePlaceholder || !isASCII(repl) {
				continue
			}
			_ = b.Set(c, repl)
		}
	}
}

// addTables parses every *.tbl file in fsys, in lexical order.
func addTables(b *Builder, fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.tbl")
	if err != nil {
		return err
	}
	for _, name := range names {
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return apperrors.NewIO("read", name, err)
		}
		entries, err := tbl.Parse(name, bytes.NewReader(src))
		if err != nil {
			return err
		}
		if err := b.Merge(entries); err != nil {
			return err
		}
	}
	return nil
}

// LoadOverlay parses an overlay file from disk: a table file, or a CLDR
// transform document when the name ends in .xml. Files ending in .xz are
// decompressed first.
func LoadOverlay(path string) ([]tbl.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var r io.Reader = f
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, apperrors.NewIO("decompress", path, err)
		}
		r = xr
		name = strings.TrimSuffix(name, ext)
	}

	if !strings.EqualFold(filepath.Ext(name), ".xml") {
		return tbl.Parse(filepath.Base(path), r)
	}
	res, err := cldr.Parse(filepath.Base(path), r)
	if err != nil {
		return nil, err
	}
	logging.Debug("cldr overlay parsed", "path", path, "entries", len(res.Entries), "skipped", res.Skipped)
	return res.Entries, nil
}

// Compile builds the layered mapping: NFKD-derived spellings, then the
// unidecode tables, then the embedded curated tables, then each overlay
// file in order. Later layers win.
func Compile(overlays ...string) (*Mapping, error) {
	b := NewBuilder()
	addDerived(b)
	addUnidecode(b)
	// The replacement character stands in for invalid UTF-8 and stays unmapped.
	b.Delete(unicode.ReplacementChar)

	if err := addTables(b, data.FS); err != nil {
		return nil, apperrors.Wrap(err, "embedded tables")
	}
	for _, path := range overlays {
		entries, err := LoadOverlay(path)
		if err != nil {
			return nil, err
		}
		if err := b.Merge(entries); err != nil {
			return nil, apperrors.Wrapf(err, "overlay %s", path)
		}
	}
	return b.Build(), nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(overlays ...string) *Mapping {
	m, err := Compile(overlays...)
	if err != nil {
		panic("translit: " + err.Error())
	}
	return m
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// DefaultEngine returns the shared engine over the built-in tables. It is
// built on first use.
func DefaultEngine() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = &Engine{mapping: MustCompile()}
	})
	return defaultEngine
}

// Default returns the built-in mapping.
func Default() *Mapping {
	return DefaultEngine().Mapping()
}
