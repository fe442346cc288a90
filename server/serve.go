package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/c360studio/guidance/fault"
)

// Coordinator is the supervisor surface the serve loop drives: the tool
// boundary notification and response-side instruction injection.
type Coordinator interface {
	OnToolCalled(ctx context.Context)
	ProcessResponse(response any) any
}

// request is one JSON line arriving from the agent host.
type request struct {
	ID     string         `json:"id"`
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// response is one JSON line written back.
type response struct {
	ID     string     `json:"id"`
	Result ToolResult `json:"result"`
}

// maxLineBytes bounds a single request line.
const maxLineBytes = 4 * 1024 * 1024

// Serve runs the JSON-lines tool loop until the input closes or the context
// is cancelled. Each request marks a tool boundary, executes against the
// registry, and passes the result through instruction injection before it is
// written.
func Serve(ctx context.Context, coord Coordinator, in io.Reader, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("Dropping malformed request line", slog.String("error", err.Error()))
			continue
		}

		result := handle(ctx, coord, req, logger)
		injected := coord.ProcessResponse(map[string]any(result))
		payload, ok := injected.(map[string]any)
		if !ok {
			payload = result
		}

		if err := encoder.Encode(response{ID: req.ID, Result: payload}); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

// handle runs one tool call, converting every failure into the structured
// fault payload so the agent always receives a well-formed result.
func handle(ctx context.Context, coord Coordinator, req request, logger *slog.Logger) ToolResult {
	coord.OnToolCalled(ctx)

	exec, ok := LookupTool(req.Tool)
	if !ok {
		return ToolResult(fault.AsPayload(fault.NotFound("tool", req.Tool)))
	}

	result, err := exec.Execute(ctx, ToolCall{ID: req.ID, Name: req.Tool, Params: req.Params})
	if err != nil {
		logger.Warn("Tool execution failed",
			slog.String("tool", req.Tool),
			slog.String("error", err.Error()))
		return ToolResult(fault.AsPayload(err))
	}
	return result
}
