package ipc

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/FocuswithJustin/strutils/core/value"
)

// RunArgs are the arguments of the run command.
type RunArgs struct {
	Name  string      `mapstructure:"name"`
	Input value.Value `mapstructure:"input"`
	Head  value.Span  `mapstructure:"head"`
}

var valueType = reflect.TypeOf(value.Value{})

// valueHook decodes value.Value fields through their JSON form so that
// payloads are normalised the same way as on the wire.
func valueHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != valueType {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var v value.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeArgs decodes args into the struct pointed to by dst using its
// mapstructure tags. Unknown keys are rejected.
func DecodeArgs(args map[string]interface{}, dst interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  valueHook,
		ErrorUnused: true,
		Result:      dst,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
