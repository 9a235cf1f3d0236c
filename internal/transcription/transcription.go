// Package transcription turns submission payloads into transcript text with
// an OpenAI speech model. Text submissions skip the model.
package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/formatting"
)

// ContentTypeText marks a typed submission.
const ContentTypeText = "text/plain"

// AudioContentTypes are the audio formats accepted by the speech model.
var AudioContentTypes = []string{
	"audio/mp4",
	"audio/mpeg",
	"audio/wav",
	"audio/ogg",
	"audio/webm",
	"application/octet-stream",
}

var extensions = map[string]string{
	"audio/mp4":                "m4a",
	"audio/mpeg":               "mp3",
	"audio/wav":                "wav",
	"audio/ogg":                "ogg",
	"audio/webm":               "webm",
	"application/octet-stream": "webm",
}

// Normalize strips parameters from a content type and lower-cases it.
// Recorders commonly send values such as "audio/webm;codecs=opus".
func Normalize(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// Supported reports whether a payload of this content type can be transcribed.
func Supported(contentType string) bool {
	ct := Normalize(contentType)
	return ct == ContentTypeText || slices.Contains(AudioContentTypes, ct)
}

// Options configures a Transcriber.
type Options struct {
	Model    string
	Language string
	MinWords int
}

// Transcriber implements workflow.Transcriber against the OpenAI audio API.
type Transcriber struct {
	client *openai.Client
	opts   Options
	logger *slog.Logger
}

// New creates a Transcriber. A nil client limits it to text payloads.
func New(client *openai.Client, opts Options, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		client: client,
		opts:   opts,
		logger: logger.With("system", "transcription"),
	}
}

var _ workflow.Transcriber = (*Transcriber)(nil)

func (t *Transcriber) Transcribe(ctx context.Context, p submissions.Payload) (string, error) {
	ct := Normalize(p.ContentType)

	if ct == ContentTypeText {
		return t.accept(strings.TrimSpace(string(p.Data)))
	}

	ext, ok := extensions[ct]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", workflow.ErrBadAudio, p.ContentType)
	}
	if t.client == nil {
		return "", fmt.Errorf("speech model not configured")
	}

	start := time.Now()
	t.logger.InfoContext(ctx, "transcribing", "model", t.opts.Model, "size", formatting.FormatBytes(p.Size(), 1))

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.opts.Model,
		FilePath: "submission." + ext,
		Reader:   bytes.NewReader(p.Data),
		Language: t.opts.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", mapError(err)
	}

	t.logger.InfoContext(ctx, "transcript received", "duration", time.Since(start), "chars", len(resp.Text))
	return t.accept(strings.TrimSpace(resp.Text))
}

func (t *Transcriber) accept(transcript string) (string, error) {
	if n := len(strings.Fields(transcript)); n < t.opts.MinWords {
		return "", fmt.Errorf("%w: %d words, need %d", workflow.ErrBadAudio, n, t.opts.MinWords)
	}
	return transcript, nil
}

// mapError treats a rejected request as unusable audio. Anything else,
// including rate limits and server errors, stays retryable.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", workflow.ErrBadAudio, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %w", workflow.ErrBadAudio, reqErr)
	}

	return fmt.Errorf("speech model: %w", err)
}
