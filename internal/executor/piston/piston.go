// Package piston runs code through a Piston-compatible HTTP API.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/executor"
)

var _ executor.Executor = (*Client)(nil)

// Client talks to one Piston endpoint, e.g. https://emkc.org/api/v2/piston.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client. A nil httpClient gets a 30s timeout default.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type file struct {
	Content string `json:"content"`
}

type executeRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []file `json:"files"`
}

// stage is the shape of both "compile" and "run" in the response. Code is
// null when the process was killed by a signal.
type stage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Output string  `json:"output"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

func (s *stage) exitCode() int {
	switch {
	case s.Code != nil:
		return *s.Code
	case s.Signal != nil && *s.Signal == "SIGKILL":
		return executor.ExitTimeout
	case s.Signal != nil:
		return 1
	default:
		return 0
	}
}

type executeResponse struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Run      stage  `json:"run"`
	Compile  *stage `json:"compile"`
	Message  string `json:"message"`
}

// Execute posts the code to {base}/execute.
//
// Transport failures and 5xx answers become apperror.Unavailable; a 4xx
// (typically an unknown runtime) becomes a validation error carrying the
// sandbox's message.
func (c *Client) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()

	body, err := json.Marshal(executeRequest{
		Language: req.Language,
		Version:  req.Version,
		Files:    []file{{Content: req.Code}},
	})
	if err != nil {
		return nil, fmt.Errorf("piston: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("piston: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("sandbox request failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable("sandbox", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperror.Unavailable("sandbox", fmt.Errorf("reading response: %w", err))
	}

	var decoded executeResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	switch {
	case resp.StatusCode >= 500:
		return nil, apperror.Unavailable("sandbox", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		msg := decoded.Message
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("sandbox rejected the request with status %d", resp.StatusCode)
		}
		return nil, apperror.ValidationFailed("language", msg)
	case decodeErr != nil:
		return nil, apperror.Unavailable("sandbox", fmt.Errorf("decoding response: %w", decodeErr))
	}

	result := &executor.ExecutionResult{
		Stdout:   decoded.Run.Stdout,
		Stderr:   decoded.Run.Stderr,
		Output:   decoded.Run.Output,
		ExitCode: decoded.Run.exitCode(),
		Duration: time.Since(start),
	}
	if decoded.Compile != nil {
		result.CompileOutput = decoded.Compile.Output
		result.CompileExitCode = decoded.Compile.exitCode()
	}
	return result, nil
}
