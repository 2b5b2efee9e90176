// Package dispatch contains the tool-call dispatch core: the bounded
// executor and the per-request dispatch loop.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/tools"
)

// Executor runs one tool call with a bounded budget. It is the panic
// boundary: nothing a tool does may propagate past Execute. A single attempt
// per dispatch — no retries.
type Executor struct {
	timeout time.Duration
}

func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{timeout: timeout}
}

type outcome struct {
	out string
	err error
}

// Execute invokes the tool with validated arguments. On expiry the call is
// abandoned: the goroutine finishes in the background and its result is
// discarded through the buffered channel rather than leaked.
func (e *Executor) Execute(ctx context.Context, t tools.Tool, input map[string]interface{}) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("tool", t.Name).Msg("tool panicked")
				ch <- outcome{err: protocol.Failf(protocol.KindExecutionError, "tool %s panicked: %v", t.Name, rec)}
			}
		}()
		out, err := t.Execute(callCtx, input)
		ch <- outcome{out: out, err: err}
	}()

	select {
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", protocol.Failf(protocol.KindExecutionError, "request cancelled")
		}
		return "", protocol.Failf(protocol.KindTimeout, "tool %s exceeded %s budget", t.Name, e.timeout)
	case o := <-ch:
		return o.out, o.err
	}
}
