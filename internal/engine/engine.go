// Package engine defines the opaque transcription engine adapter the runner
// drives one segment at a time.
package engine

import "context"

// Request describes one audio segment to transcribe. AudioPath points at a
// standalone audio file covering exactly the segment; timings in the result
// are relative to it.
type Request struct {
	// AudioPath is the extracted audio clip for the segment.
	AudioPath string
	// Model is the transcription model name (tiny .. large-v3).
	Model string
	// TranslateToEnglish selects the translate task; when false the source
	// language is preserved.
	TranslateToEnglish bool
	// Prompt carries the tail of the previous segment's text to stabilize
	// decoding across segment boundaries.
	Prompt string
}

// Result is the transcription of one segment. Start and End are seconds
// within the segment; End falls back to the clip duration when the engine
// reports no timing.
type Result struct {
	Text  string
	Start float64
	End   float64
}

// Transcriber is the engine adapter. Implementations may be slow; this call
// is the only blocking operation in the segment loop and is the dominant
// cost of a job.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// TransientError wraps a per-segment failure worth retrying with the same
// segment before escalating.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient engine error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable.
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}
