// Package selfcheck runs every command example and reports whether the
// command still produces the documented result.
package selfcheck

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/strutils/core/command"
	"github.com/FocuswithJustin/strutils/core/value"
)

// Version is the report format version.
const Version = "1.0.0"

// Status values for reports.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// Check types.
const (
	CheckExampleResult = "EXAMPLE_RESULT"
	CheckExampleRuns   = "EXAMPLE_RUNS"
)

// Report is the output of a self-check execution.
type Report struct {
	ReportVersion string        `json:"report_version"`
	CreatedAt     string        `json:"created_at"`
	Subject       string        `json:"subject"`
	Engine        *EngineInfo   `json:"engine,omitempty"`
	Results       []CheckResult `json:"results"`
	Status        string        `json:"status"`
}

// EngineInfo identifies the transliteration table the checks ran against.
type EngineInfo struct {
	TableDigest string `json:"table_digest,omitempty"`
	Codepoints  int    `json:"codepoints,omitempty"`
}

// CheckResult is the result of a single example.
type CheckResult struct {
	CheckType string       `json:"check_type"`
	Command   string       `json:"command"`
	Label     string       `json:"label"`
	Pass      bool         `json:"pass"`
	Expected  *value.Value `json:"expected,omitempty"`
	Actual    *value.Value `json:"actual,omitempty"`
	Details   string       `json:"details,omitempty"`
}

// ToJSON serializes the report to JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Hash returns the BLAKE3 hash of the report.
func (r *Report) Hash() string {
	data, _ := json.Marshal(r)
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Failed returns the failing results.
func (r *Report) Failed() []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if !res.Pass {
			out = append(out, res)
		}
	}
	return out
}

// CheckExamples runs the examples of every command in set. Examples with a
// Result must reproduce it; examples without one must run without error.
func CheckExamples(subject string, set *command.Set, engine *EngineInfo) *Report {
	report := &Report{
		ReportVersion: Version,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Subject:       subject,
		Engine:        engine,
		Results:       []CheckResult{},
		Status:        StatusPass,
	}

	for _, sig := range set.Signatures() {
		for i, ex := range sig.Examples {
			res := checkExample(set, sig.Name, i, ex)
			if !res.Pass {
				report.Status = StatusFail
			}
			report.Results = append(report.Results, res)
		}
	}
	return report
}

func checkExample(set *command.Set, name string, idx int, ex command.Example) CheckResult {
	label := ex.Example
	if label == "" {
		label = fmt.Sprintf("%s example %d", name, idx+1)
	}
	res := CheckResult{CheckType: CheckExampleRuns, Command: name, Label: label}
	if ex.Result != nil {
		res.CheckType = CheckExampleResult
		res.Expected = ex.Result
	}

	got, err := set.Run(name, &command.Call{}, ex.Input)
	if err != nil {
		res.Details = err.Error()
		return res
	}
	res.Actual = &got

	if ex.Result == nil {
		res.Pass = !got.IsError()
		if !res.Pass {
			res.Details = got.Display()
		}
		return res
	}
	res.Pass = value.Equal(*ex.Result, got)
	if !res.Pass {
		res.Details = fmt.Sprintf("expected %q, got %q", ex.Result.Display(), got.Display())
	}
	return res
}
