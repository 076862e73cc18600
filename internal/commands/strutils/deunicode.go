// Package strutils provides the string commands of the strutils plugin.
package strutils

import (
	"github.com/FocuswithJustin/strutils/core/command"
	"github.com/FocuswithJustin/strutils/core/translit"
	"github.com/FocuswithJustin/strutils/core/value"
)

// DeunicodeName is the command name the host invokes.
const DeunicodeName = "str deunicode"

// Deunicode converts a string to plain ASCII.
type Deunicode struct {
	engine *translit.Engine
}

// NewDeunicode returns the command over engine. A nil engine uses the
// built-in tables.
func NewDeunicode(engine *translit.Engine) *Deunicode {
	return &Deunicode{engine: engine}
}

// Engine returns the transliteration engine in use.
func (d *Deunicode) Engine() *translit.Engine {
	if d.engine == nil {
		return translit.DefaultEngine()
	}
	return d.engine
}

// Signature implements command.Command.
func (d *Deunicode) Signature() command.Signature {
	result := value.String("A...C", value.Unknown)
	return command.Signature{
		Name:        DeunicodeName,
		Category:    command.CategoryStrings,
		Description: "Convert Unicode string to pure ASCII.",
		SearchTerms: []string{"convert", "ascii"},
		InputOutput: []command.TypePair{{Input: value.TypeString, Output: value.TypeString}},
		Examples: []command.Example{{
			Description: "deunicode a string",
			Example:     "'A…C' | str deunicode",
			Input:       value.String("A…C", value.Unknown),
			Result:      &result,
		}},
	}
}

// Run implements command.Command. Error values pass through untouched and
// anything that is not a string becomes a type mismatch at the call head.
func (d *Deunicode) Run(call *command.Call, input value.Value) (value.Value, error) {
	switch input.Type {
	case value.TypeString:
		s, _ := input.AsString()
		return value.String(d.Engine().String(s), call.Head), nil
	case value.TypeError:
		return input, nil
	default:
		err := value.NewTypeMismatch(string(value.TypeString), input.TypeName(), call.Head, input.Span)
		return value.Error(err, call.Head), nil
	}
}
