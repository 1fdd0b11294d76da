package handler

import (
	"context"
	"log/slog"

	"github.com/vutran-dev/transcribe-be/internal/artifact"
	"github.com/vutran-dev/transcribe-be/internal/config"
	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

// Publisher dispatches job messages to the work queue.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Ledger         *ledger.Ledger
	Artifacts      *artifact.Store
	Publisher      Publisher
	Transcription  config.TranscriptionConfig
	MaxUploadBytes int64
}

// TranscriptionHandler handles transcription job HTTP requests
type TranscriptionHandler struct {
	logger         *slog.Logger
	ledger         *ledger.Ledger
	artifacts      *artifact.Store
	publisher      Publisher
	transcription  config.TranscriptionConfig
	maxUploadBytes int64
}

// NewTranscriptionHandler creates a new TranscriptionHandler instance
func NewTranscriptionHandler(deps *Dependencies) *TranscriptionHandler {
	return &TranscriptionHandler{
		logger:         deps.Logger,
		ledger:         deps.Ledger,
		artifacts:      deps.Artifacts,
		publisher:      deps.Publisher,
		transcription:  deps.Transcription,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}
