// Package command defines the contract between the host and the commands a
// plugin provides.
package command

import (
	"fmt"
	"slices"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/value"
)

// Category groups commands in help output.
type Category string

const (
	CategoryStrings Category = "strings"
)

// TypePair is one accepted input type and the output type it produces.
type TypePair struct {
	Input  value.Type `json:"input"`
	Output value.Type `json:"output"`
}

func (p TypePair) String() string {
	return fmt.Sprintf("%s -> %s", p.Input, p.Output)
}

// Example is a runnable usage example. Input is what the pipeline feeds the
// command; Result, when set, is the expected output.
type Example struct {
	Description string       `json:"description"`
	Example     string       `json:"example"`
	Input       value.Value  `json:"input"`
	Result      *value.Value `json:"result,omitempty"`
}

// Signature describes a command to the host.
type Signature struct {
	Name        string     `json:"name"`
	Category    Category   `json:"category"`
	Description string     `json:"description"`
	SearchTerms []string   `json:"search_terms,omitempty"`
	InputOutput []TypePair `json:"input_output"`
	Examples    []Example  `json:"examples,omitempty"`
}

// Accepts reports whether the signature lists t as an input type.
func (s Signature) Accepts(t value.Type) bool {
	return slices.ContainsFunc(s.InputOutput, func(p TypePair) bool { return p.Input == t })
}

// Call carries the invocation context. Head is the span of the command name
// at the call site.
type Call struct {
	Name       string                 `json:"name"`
	Head       value.Span             `json:"head"`
	Positional []value.Value          `json:"positional,omitempty"`
	Named      map[string]value.Value `json:"named,omitempty"`
}

// Command is a single plugin command.
//
// Run reports bad input as an error value, not a Go error; a returned error
// means the command could not run at all.
type Command interface {
	Signature() Signature
	Run(call *Call, input value.Value) (value.Value, error)
}

// Set is an immutable collection of commands keyed by name.
type Set struct {
	cmds  map[string]Command
	names []string
}

// NewSet collects cmds. Names must be unique and non-empty.
func NewSet(cmds ...Command) (*Set, error) {
	s := &Set{cmds: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		name := c.Signature().Name
		if name == "" {
			return nil, apperrors.NewValidation("name", "command name is empty")
		}
		if _, dup := s.cmds[name]; dup {
			return nil, apperrors.NewValidation("name", fmt.Sprintf("duplicate command %q", name))
		}
		s.cmds[name] = c
		s.names = append(s.names, name)
	}
	slices.Sort(s.names)
	return s, nil
}

// MustNewSet is like NewSet but panics on error.
func MustNewSet(cmds ...Command) *Set {
	s, err := NewSet(cmds...)
	if err != nil {
		panic(err)
	}
	return s
}

// Get returns the command called name.
func (s *Set) Get(name string) (Command, error) {
	c, ok := s.cmds[name]
	if !ok {
		return nil, apperrors.NewNotFound("command", name)
	}
	return c, nil
}

// Names returns the command names in sorted order.
func (s *Set) Names() []string {
	return slices.Clone(s.names)
}

// Signatures returns every signature in name order.
func (s *Set) Signatures() []Signature {
	out := make([]Signature, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.cmds[n].Signature())
	}
	return out
}

// Run looks up name and runs it. A nil call runs with an unknown head span.
func (s *Set) Run(name string, call *Call, input value.Value) (value.Value, error) {
	c, err := s.Get(name)
	if err != nil {
		return value.Value{}, err
	}
	if call == nil {
		call = &Call{}
	}
	call.Name = name
	return c.Run(call, input)
}
