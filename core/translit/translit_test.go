package translit

import (
	"bytes"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

func TestDefaultScenarios(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ellipsis", "A…C", "A...C"},
		{"empty", "", ""},
		{"accent", "café", "cafe"},
		{"decomposed accent", "cafe\u0301", "cafe"},
		{"sharp s", "Straße", "Strasse"},
		{"ligature", "ﬁne", "fine"},
		{"fullwidth", "ＡＢＣ１２３", "ABC123"},
		{"curly quotes", "“quoted” ‘text’", `"quoted" 'text'`},
		{"dashes", "a–b—c", "a-b--c"},
		{"zero width", "a\u200bb\ufeff", "ab"},
		{"cyrillic", "Привет", "Privet"},
		{"greek", "Αθήνα", "Athina"},
		{"nordic", "Ærøskøbing", "AEroskobing"},
		{"polish", "Łódź", "Lodz"},
		{"superscript", "x²", "x2"},
		{"euro", "5€", "5EUR"},
		{"private use dropped", "a\U000F0000b", "ab"},
		{"invalid utf8 dropped", "a\xffb", "ab"},
		{"control passes", "tab\there\n", "tab\there\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.in); got != tt.want {
				t.Errorf("String(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultCJK(t *testing.T) {
	// Romanisations keep their trailing separator.
	if got := String("北京"); got != "Bei Jing " {
		t.Errorf("String(北京) = %q", got)
	}
}

// randomText mixes ASCII with codepoints from many scripts, unassigned
// space and private use.
func randomText(r *rand.Rand) string {
	var sb strings.Builder
	n := r.IntN(32)
	for range n {
		switch r.IntN(4) {
		case 0:
			sb.WriteByte(byte(r.IntN(0x80)))
		case 1:
			sb.WriteRune(rune(0x80 + r.IntN(0x3000)))
		case 2:
			sb.WriteRune(rune(0x4E00 + r.IntN(0x5200)))
		default:
			c := rune(r.IntN(utf8.MaxRune + 1))
			if utf8.ValidRune(c) {
				sb.WriteRune(c)
			}
		}
	}
	return sb.String()
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	e := DefaultEngine()

	var buf []byte
	for range 2000 {
		in := randomText(r)
		out := e.String(in)

		if !isASCII(out) {
			t.Fatalf("non-ASCII output %q for %q", out, in)
		}
		if again := e.String(out); again != out {
			t.Fatalf("not idempotent for %q: %q then %q", in, out, again)
		}
		if got := string(e.Bytes([]byte(in))); got != out {
			t.Fatalf("Bytes(%q) = %q, String gave %q", in, got, out)
		}
		buf = e.AppendString(buf[:0], in)
		if string(buf) != out {
			t.Fatalf("AppendString(%q) = %q, String gave %q", in, buf, out)
		}
	}
}

func TestAppendStringKeepsPrefix(t *testing.T) {
	got := DefaultEngine().AppendString([]byte("> "), "café")
	if string(got) != "> cafe" {
		t.Errorf("AppendString() = %q", got)
	}
}

func TestASCIIIdentity(t *testing.T) {
	var sb strings.Builder
	for c := 0; c < utf8.RuneSelf; c++ {
		sb.WriteByte(byte(c))
	}
	all := sb.String()
	if got := String(all); got != all {
		t.Errorf("String(ASCII) = %q", got)
	}
	if got := string(DefaultEngine().Bytes([]byte(all))); got != all {
		t.Errorf("Bytes(ASCII) = %q", got)
	}
}

func TestPlaceholder(t *testing.T) {
	b := NewBuilder()
	if err := b.Set('é', "e"); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(0x200B, ""); err != nil {
		t.Fatal(err)
	}

	plain, err := New(b.Build())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := plain.String("é一"); got != "e" {
		t.Errorf("without placeholder = %q, want e", got)
	}

	withQ, err := New(b.Build(), WithPlaceholder("?"))
	if err != nil {
		t.Fatalf("New(WithPlaceholder) error = %v", err)
	}
	if withQ.Placeholder() != "?" {
		t.Errorf("Placeholder() = %q", withQ.Placeholder())
	}
	if got := withQ.String("é一"); got != "e?" {
		t.Errorf("with placeholder = %q, want e?", got)
	}
	// Explicitly dropped codepoints never become the placeholder.
	if got := withQ.String("a\u200bb"); got != "ab" {
		t.Errorf("dropped codepoint = %q, want ab", got)
	}

	if _, err := New(b.Build(), WithPlaceholder("…")); err == nil {
		t.Error("expected error for non-ASCII placeholder")
	}
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil mapping")
	}
}

func TestTransformer(t *testing.T) {
	e := DefaultEngine()
	in := strings.Repeat("Crème brûlée… “déjà vu” ", 500)
	want := e.String(in)

	got, _, err := transform.String(e.Transformer(), in)
	if err != nil {
		t.Fatalf("transform.String() error = %v", err)
	}
	if got != want {
		t.Error("transform.String() differs from String()")
	}

	// A reader with a tiny source buffer splits multi-byte sequences.
	out, err := io.ReadAll(transform.NewReader(iotest.OneByteReader(strings.NewReader(in)), e.Transformer()))
	if err != nil {
		t.Fatalf("reader error = %v", err)
	}
	if string(out) != want {
		t.Error("one-byte reader output differs from String()")
	}

	var buf bytes.Buffer
	w := transform.NewWriter(&buf, e.Transformer())
	if _, err := w.Write([]byte(in)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.String() != want {
		t.Error("writer output differs from String()")
	}
}

func TestTransformerShortBuffers(t *testing.T) {
	tr := DefaultEngine().Transformer()

	// Truncated sequence without atEOF asks for more input.
	nDst, nSrc, err := tr.Transform(make([]byte, 8), []byte("a\xc3"), false)
	if err != transform.ErrShortSrc || nDst != 1 || nSrc != 1 {
		t.Errorf("truncated = %d, %d, %v; want 1, 1, ErrShortSrc", nDst, nSrc, err)
	}

	// At EOF the same bytes decode to U+FFFD and are dropped.
	nDst, nSrc, err = tr.Transform(make([]byte, 8), []byte("a\xc3"), true)
	if err != nil || nDst != 1 || nSrc != 2 {
		t.Errorf("at EOF = %d, %d, %v; want 1, 2, nil", nDst, nSrc, err)
	}

	// The ellipsis needs three bytes of room.
	_, nSrc, err = tr.Transform(make([]byte, 2), []byte("…"), true)
	if err != transform.ErrShortDst || nSrc != 0 {
		t.Errorf("short dst = %d, %v; want 0, ErrShortDst", nSrc, err)
	}
}

func TestDefaultConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := String("A…C"); got != "A...C" {
				t.Errorf("String() = %q", got)
			}
		}()
	}
	wg.Wait()
	if DefaultEngine() != DefaultEngine() {
		t.Error("DefaultEngine() is not shared")
	}
}
