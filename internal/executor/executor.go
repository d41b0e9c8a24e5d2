// Package executor defines the sandbox contract used to run snippets.
//
// Two backends exist: piston (a remote Piston-compatible HTTP API) and
// docker (a self-hosted pool of locked-down containers).
package executor

import (
	"context"
	"strings"
	"time"
)

// ExitTimeout is reported when a run is killed for exceeding its time limit,
// following the convention of the unix timeout command.
const ExitTimeout = 124

// ExecutionRequest asks a sandbox to run one source file.
type ExecutionRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Code     string `json:"code"`
}

// ExecutionResult is the raw outcome of a run. Compile fields stay empty
// for interpreted languages.
type ExecutionResult struct {
	Stdout          string        `json:"stdout"`
	Stderr          string        `json:"stderr"`
	Output          string        `json:"output"`
	ExitCode        int           `json:"exitCode"`
	CompileOutput   string        `json:"compileOutput,omitempty"`
	CompileExitCode int           `json:"compileExitCode"`
	Duration        time.Duration `json:"duration"`
}

// Outcome splits a result into what the user sees as program output and
// what is reported as an error.
//
//   - compile failure: the compile output (or stderr) is the error
//   - runtime failure: stderr (or the combined output) is the error
//   - success: stdout (or the combined output) is the output
func (r *ExecutionResult) Outcome() (output, errText string) {
	if r.CompileExitCode != 0 {
		return "", firstNonEmpty(r.CompileOutput, r.Stderr, "compilation failed")
	}
	if r.ExitCode != 0 {
		return r.Stdout, firstNonEmpty(r.Stderr, r.Output, "execution failed")
	}
	return firstNonEmpty(r.Stdout, r.Output), ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Executor represents the core interface for running code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
