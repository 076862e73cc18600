// Package value is the data model commands exchange with their host.
//
// A Value is a tagged union: Type says which Go type Val holds. Every value
// carries the Span of source text it came from so that errors can point at
// it. Error values are ordinary values; commands receiving one usually
// return it unchanged.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
)

// Span is a half-open byte range in the host's source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Unknown is the span used when no source location exists.
var Unknown = Span{}

// Type names the kind of data a Value holds.
type Type string

const (
	TypeString  Type = "string"
	TypeInt     Type = "int"
	TypeFloat   Type = "float"
	TypeBool    Type = "bool"
	TypeNothing Type = "nothing"
	TypeList    Type = "list"
	TypeRecord  Type = "record"
	TypeBinary  Type = "binary"
	TypeError   Type = "error"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeNothing,
		TypeList, TypeRecord, TypeBinary, TypeError:
		return true
	}
	return false
}

// Value is one host value.
//
// Val holds string, int64, float64, bool, nil, []Value, map[string]Value or
// []byte according to Type. Error values keep their payload in Error.
type Value struct {
	Type  Type          `json:"type"`
	Val   any           `json:"val,omitempty"`
	Error *LabeledError `json:"error,omitempty"`
	Span  Span          `json:"span"`
}

// String returns a string value.
func String(s string, span Span) Value {
	return Value{Type: TypeString, Val: s, Span: span}
}

// Int returns an int value.
func Int(i int64, span Span) Value {
	return Value{Type: TypeInt, Val: i, Span: span}
}

// Float returns a float value.
func Float(f float64, span Span) Value {
	return Value{Type: TypeFloat, Val: f, Span: span}
}

// Bool returns a bool value.
func Bool(b bool, span Span) Value {
	return Value{Type: TypeBool, Val: b, Span: span}
}

// Nothing returns the empty value.
func Nothing(span Span) Value {
	return Value{Type: TypeNothing, Span: span}
}

// List returns a list value.
func List(vals []Value, span Span) Value {
	if vals == nil {
		vals = []Value{}
	}
	return Value{Type: TypeList, Val: vals, Span: span}
}

// Record returns a record value.
func Record(fields map[string]Value, span Span) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{Type: TypeRecord, Val: fields, Span: span}
}

// Binary returns a binary value.
func Binary(b []byte, span Span) Value {
	return Value{Type: TypeBinary, Val: b, Span: span}
}

// Error returns an error value.
func Error(err *LabeledError, span Span) Value {
	return Value{Type: TypeError, Error: err, Span: span}
}

// TypeName returns the name used in type errors.
func (v Value) TypeName() string {
	if v.Type == "" {
		return string(TypeNothing)
	}
	return string(v.Type)
}

// IsError reports whether v is an error value.
func (v Value) IsError() bool {
	return v.Type == TypeError
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.Type != TypeString {
		return "", false
	}
	s, ok := v.Val.(string)
	return s, ok
}

// AsInt returns the int payload.
func (v Value) AsInt() (int64, bool) {
	if v.Type != TypeInt {
		return 0, false
	}
	i, ok := v.Val.(int64)
	return i, ok
}

// Interface converts v back to plain Go data, suitable for JSON output.
// Error values become their message.
func (v Value) Interface() any {
	switch v.Type {
	case TypeList:
		vals, _ := v.Val.([]Value)
		out := make([]any, len(vals))
		for i, e := range vals {
			out[i] = e.Interface()
		}
		return out
	case TypeRecord:
		fields, _ := v.Val.(map[string]Value)
		out := make(map[string]any, len(fields))
		for k, e := range fields {
			out[k] = e.Interface()
		}
		return out
	case TypeError:
		if v.Error == nil {
			return "error"
		}
		return v.Error.Msg
	default:
		return v.Val
	}
}

// Equal reports whether a and b hold the same data, ignoring spans. Error
// values compare by message.
func Equal(a, b Value) bool {
	if a.TypeName() != b.TypeName() {
		return false
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}

// Display renders v for terminal output.
func (v Value) Display() string {
	switch v.Type {
	case TypeString:
		s, _ := v.AsString()
		return s
	case TypeNothing, "":
		return ""
	case TypeBinary:
		b, _ := v.Val.([]byte)
		return fmt.Sprintf("%d bytes", len(b))
	case TypeList:
		vals, _ := v.Val.([]Value)
		parts := make([]string, len(vals))
		for i, e := range vals {
			parts[i] = e.Display()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeRecord:
		fields, _ := v.Val.(map[string]Value)
		keys := slices.Sorted(maps.Keys(fields))
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + fields[k].Display()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case TypeError:
		if v.Error == nil {
			return "error"
		}
		return "Error: " + v.Error.Msg
	default:
		return fmt.Sprint(v.Val)
	}
}

// UnmarshalJSON decodes a value and normalises Val to the Go type its
// Type implies.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  Type            `json:"type"`
		Val   json.RawMessage `json:"val"`
		Error *LabeledError   `json:"error"`
		Span  Span            `json:"span"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Type.Valid() {
		return apperrors.NewValidation("type", fmt.Sprintf("unknown value type %q", raw.Type))
	}
	out := Value{Type: raw.Type, Error: raw.Error, Span: raw.Span}

	var err error
	switch raw.Type {
	case TypeString:
		var s string
		err = decodeVal(raw.Val, &s)
		out.Val = s
	case TypeInt:
		var i int64
		err = decodeVal(raw.Val, &i)
		out.Val = i
	case TypeFloat:
		var f float64
		err = decodeVal(raw.Val, &f)
		out.Val = f
	case TypeBool:
		var b bool
		err = decodeVal(raw.Val, &b)
		out.Val = b
	case TypeList:
		vals := []Value{}
		err = decodeVal(raw.Val, &vals)
		out.Val = vals
	case TypeRecord:
		fields := map[string]Value{}
		err = decodeVal(raw.Val, &fields)
		out.Val = fields
	case TypeBinary:
		var b []byte
		err = decodeVal(raw.Val, &b)
		out.Val = b
	case TypeError:
		if out.Error == nil {
			return apperrors.NewValidation("error", "error value without payload")
		}
	}
	if err != nil {
		return apperrors.Wrapf(err, "decode %s value", raw.Type)
	}
	*v = out
	return nil
}

func decodeVal(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// FromGo converts plain Go data, as produced by encoding/json, into a Value.
// Every nested value gets span.
func FromGo(x any, span Span) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Nothing(span), nil
	case Value:
		return t, nil
	case string:
		return String(t, span), nil
	case bool:
		return Bool(t, span), nil
	case int:
		return Int(int64(t), span), nil
	case int32:
		return Int(int64(t), span), nil
	case int64:
		return Int(t, span), nil
	case float32:
		return Float(float64(t), span), nil
	case float64:
		return number(t, span), nil
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return Int(i, span), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, apperrors.NewValidation("number", err.Error())
		}
		return number(f, span), nil
	case []byte:
		return Binary(t, span), nil
	case []any:
		vals := make([]Value, len(t))
		for i, e := range t {
			v, err := FromGo(e, span)
			if err != nil {
				return Value{}, err
			}
			vals[i] = v
		}
		return List(vals, span), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromGo(e, span)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return Record(fields, span), nil
	case error:
		return Error(FromError(t, span), span), nil
	}
	return Value{}, apperrors.NewUnsupported("value", fmt.Sprintf("Go type %T", x))
}

// number converts a decoded JSON number. JSON does not tell 2 from 2.0 and
// most decoders keep only the float64, so every integral value in int64
// range is an int.
func number(f float64, span Span) Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return Int(int64(f), span)
	}
	return Float(f, span)
}

// FromJSON decodes plain JSON (not the tagged Value encoding) into a Value.
// Integral numbers become ints, whether written 2, 2.0 or 2e0.
func FromJSON(data []byte, span Span) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return Value{}, &apperrors.ParseError{Format: "JSON", Message: err.Error(), Err: err}
	}
	return FromGo(x, span)
}
