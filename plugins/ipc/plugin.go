package ipc

import (
	"github.com/FocuswithJustin/strutils/core/command"
	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/selfcheck"
)

// Metadata identifies a plugin to the host.
type Metadata struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	TableDigest string   `json:"table_digest,omitempty"`
	Codepoints  int      `json:"codepoints,omitempty"`
	Commands    []string `json:"commands"`
}

// Plugin answers protocol commands for a command set. The same value serves
// the stdin/stdout loop and in-process (embedded) calls.
type Plugin struct {
	meta     Metadata
	commands *command.Set
}

// NewPlugin returns a Plugin serving set. meta.Commands is filled in from
// set.
func NewPlugin(meta Metadata, set *command.Set) *Plugin {
	meta.Commands = set.Names()
	return &Plugin{meta: meta, commands: set}
}

// Metadata returns the plugin metadata.
func (p *Plugin) Metadata() Metadata {
	return p.meta
}

// Commands returns the served command set.
func (p *Plugin) Commands() *command.Set {
	return p.commands
}

// Execute runs one protocol command. Errors are for the protocol level; a
// command rejecting its input still succeeds with an error value.
func (p *Plugin) Execute(cmd string, args map[string]interface{}) (interface{}, error) {
	switch cmd {
	case CommandMetadata:
		return p.meta, nil

	case CommandSignature:
		return p.commands.Signatures(), nil

	case CommandRun:
		var ra RunArgs
		if err := DecodeArgs(args, &ra); err != nil {
			return nil, apperrors.NewValidation("args", err.Error())
		}
		if ra.Name == "" {
			return nil, apperrors.NewValidation("name", "argument required")
		}
		return p.commands.Run(ra.Name, &command.Call{Name: ra.Name, Head: ra.Head}, ra.Input)

	case CommandSelfcheck:
		return selfcheck.CheckExamples(p.meta.Name, p.commands, &selfcheck.EngineInfo{
			TableDigest: p.meta.TableDigest,
			Codepoints:  p.meta.Codepoints,
		}), nil

	default:
		return nil, apperrors.NewUnsupported("command", cmd)
	}
}

// Handle executes req and wraps the outcome in a Response.
func (p *Plugin) Handle(req *Request) *Response {
	result, err := p.Execute(req.Command, req.Args)
	if err != nil {
		return FailErr(req, err)
	}
	return OK(req, result)
}
