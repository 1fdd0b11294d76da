package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// StubTranscriber produces deterministic placeholder text without calling
// any external service. It exists so the orchestration path can be run
// end to end in local development.
type StubTranscriber struct {
	// Delay simulates per-segment engine latency.
	Delay time.Duration
}

func (t *StubTranscriber) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if t.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.Delay):
		}
	}
	return &Result{
		Text: fmt.Sprintf("(stub transcription of %s, model %s)", filepath.Base(req.AudioPath), req.Model),
	}, nil
}
