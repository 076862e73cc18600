package command

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/value"
)

// echo returns its input, or the call name when the input is nothing.
type echo struct{ name string }

func (e echo) Signature() Signature {
	return Signature{
		Name:        e.name,
		Category:    CategoryStrings,
		InputOutput: []TypePair{{Input: value.TypeString, Output: value.TypeString}},
	}
}

func (e echo) Run(call *Call, input value.Value) (value.Value, error) {
	if input.Type == value.TypeNothing {
		return value.String(call.Name, call.Head), nil
	}
	return input, nil
}

func TestSet(t *testing.T) {
	s, err := NewSet(echo{"str b"}, echo{"str a"})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	if got := s.Names(); !slices.Equal(got, []string{"str a", "str b"}) {
		t.Errorf("Names() = %v", got)
	}
	sigs := s.Signatures()
	if len(sigs) != 2 {
		t.Fatalf("got %d signatures, want 2", len(sigs))
	}
	if sigs[0].Name != "str a" {
		t.Errorf("first signature = %q, want sorted by name", sigs[0].Name)
	}
	if !sigs[0].Accepts(value.TypeString) || sigs[0].Accepts(value.TypeInt) {
		t.Error("str a should accept string input only")
	}
	if got := sigs[0].InputOutput[0].String(); got != "string -> string" {
		t.Errorf("TypePair.String() = %q", got)
	}

	head := value.Span{Start: 2, End: 7}
	got, err := s.Run("str b", &Call{Head: head}, value.Nothing(value.Unknown))
	if err != nil {
		t.Fatalf("Run(str b) error = %v", err)
	}
	if want := value.String("str b", head); !reflect.DeepEqual(got, want) {
		t.Errorf("Run(str b) = %+v, want %+v", got, want)
	}

	got, err = s.Run("str a", nil, value.String("x", value.Unknown))
	if err != nil {
		t.Fatalf("Run(str a) error = %v", err)
	}
	if got.Val != "x" {
		t.Errorf("Run(str a) = %v, want x", got.Val)
	}

	if _, err := s.Run("str c", nil, value.Nothing(value.Unknown)); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Run(str c) error = %v, want not found", err)
	}
}

func TestNewSetRejects(t *testing.T) {
	if _, err := NewSet(echo{"str a"}, echo{"str a"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("duplicate name error = %v", err)
	}
	if _, err := NewSet(echo{""}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty name error = %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustNewSet() did not panic")
		}
	}()
	MustNewSet(echo{""})
}
