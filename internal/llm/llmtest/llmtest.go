// Package llmtest provides canned model implementations for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/Lllllllleong/reportflow/internal/llm"
)

// Generator answers each task with a fixed response. Unknown tasks return Err,
// or an empty response when Err is nil.
type Generator struct {
	Responses map[llm.Task]string
	Err       error

	mu    sync.Mutex
	calls []llm.Request
}

func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if resp, ok := g.Responses[req.Task]; ok {
		return resp, nil
	}
	if g.Err != nil {
		return "", g.Err
	}
	return "", llm.ErrEmptyResponse
}

// Calls returns the requests received so far.
func (g *Generator) Calls() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]llm.Request, len(g.calls))
	copy(out, g.calls)
	return out
}

// Down returns a Generator that fails every call with err.
func Down(err error) *Generator {
	return &Generator{Err: err}
}

// Vision replays Errs in order, then answers with Response.
type Vision struct {
	Response string
	Errs     []error

	mu    sync.Mutex
	calls int
}

func (v *Vision) InterpretChart(ctx context.Context, req llm.ChartRequest) (string, error) {
	v.mu.Lock()
	n := v.calls
	v.calls++
	v.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if n < len(v.Errs) && v.Errs[n] != nil {
		return "", v.Errs[n]
	}
	return v.Response, nil
}

// Calls returns the number of calls received.
func (v *Vision) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}
