package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITranscriber runs segments through the OpenAI audio API. The segment's
// keep-source-language mode maps to the transcription endpoint; otherwise the
// translation endpoint produces English text.
type OpenAITranscriber struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAITranscriber creates an adapter using the given API key.
func NewOpenAITranscriber(apiKey string, logger *slog.Logger) (*OpenAITranscriber, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return &OpenAITranscriber{
		client: openai.NewClient(apiKey),
		logger: logger,
	}, nil
}

// Transcribe sends one segment clip to the audio API and maps the verbose
// response to text plus within-segment timing.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, req Request) (*Result, error) {
	audioReq := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: req.AudioPath,
		Prompt:   req.Prompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	var (
		resp openai.AudioResponse
		err  error
	)
	if req.TranslateToEnglish {
		resp, err = t.client.CreateTranslation(ctx, audioReq)
	} else {
		resp, err = t.client.CreateTranscription(ctx, audioReq)
	}
	if err != nil {
		return nil, classifyError(err)
	}

	result := &Result{
		Text: strings.TrimSpace(resp.Text),
		End:  resp.Duration,
	}
	if len(resp.Segments) > 0 {
		result.Start = resp.Segments[0].Start
		result.End = resp.Segments[len(resp.Segments)-1].End
	}

	t.logger.Debug("Segment transcribed",
		slog.String("audio", req.AudioPath),
		slog.Int("text_len", len(result.Text)),
	)

	return result, nil
}

// classifyError marks rate limits, timeouts and server-side failures as
// transient so the runner retries them; everything else escalates directly.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return NewTransientError(err)
		}
		return err
	}
	// Network-level failures have no status code; treat them as transient.
	return NewTransientError(err)
}
