package ipc

import (
	"encoding/json"
	"testing"

	"github.com/FocuswithJustin/strutils/core/value"
)

// wireArgs builds args the way they arrive from JSON.
func wireArgs(t *testing.T, src string) map[string]interface{} {
	t.Helper()
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(src), &args); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return args
}

func TestDecodeRunArgs(t *testing.T) {
	args := wireArgs(t, `{
		"name": "str deunicode",
		"input": {"type": "int", "val": 5, "span": {"start": 0, "end": 1}},
		"head": {"start": 4, "end": 17}
	}`)

	var ra RunArgs
	if err := DecodeArgs(args, &ra); err != nil {
		t.Fatalf("DecodeArgs() error = %v", err)
	}
	if ra.Name != "str deunicode" {
		t.Errorf("Name = %q", ra.Name)
	}
	if ra.Head != (value.Span{Start: 4, End: 17}) {
		t.Errorf("Head = %+v", ra.Head)
	}
	if i, ok := ra.Input.AsInt(); !ok || i != 5 {
		t.Errorf("Input = %+v, want int 5", ra.Input)
	}
	if ra.Input.Span != (value.Span{Start: 0, End: 1}) {
		t.Errorf("Input.Span = %+v", ra.Input.Span)
	}
}

func TestDecodeArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", `{"name": "x", "extra": true}`},
		{"bad value type", `{"name": "x", "input": {"type": "duration"}}`},
		{"name not string", `{"name": ["x"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ra RunArgs
			if err := DecodeArgs(wireArgs(t, tt.src), &ra); err == nil {
				t.Error("expected error")
			}
		})
	}
}
