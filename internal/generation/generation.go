// Package generation writes the public consultation response and the
// representative email from a transcript using a go-agents chat agent.
package generation

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/formatting"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Errors returned by Generate.
var (
	ErrUnknownKind       = errors.New("unknown document kind")
	ErrTranscriptMissing = errors.New("transcript required")
	ErrEmptyDocument     = errors.New("model returned an empty document")
)

const instructions = "You draft correspondence on behalf of members of the public. " +
	"Always answer with one JSON object containing string fields \"subject\" and \"body\"."

// Chatter sends a single prompt to a chat model and returns the reply text.
type Chatter interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Options configures a Generator.
type Options struct {
	DefaultName string
}

type promptData struct {
	Transcript         string
	Name               string
	RepresentativeName string
	LocationKey        string
}

// Generator implements workflow.DocumentGenerator.
type Generator struct {
	chat      Chatter
	opts      Options
	templates map[workflow.DocumentKind]*template.Template
	logger    *slog.Logger
}

var _ workflow.DocumentGenerator = (*Generator)(nil)

// New parses the embedded prompt templates and returns a Generator.
func New(chat Chatter, opts Options, logger *slog.Logger) (*Generator, error) {
	templates := make(map[workflow.DocumentKind]*template.Template, 2)
	for _, kind := range []workflow.DocumentKind{workflow.DocumentPublic, workflow.DocumentRepresentative} {
		name := string(kind) + ".tmpl"
		tmpl, err := template.New(name).Option("missingkey=error").ParseFS(promptFS, "prompts/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", kind, err)
		}
		templates[kind] = tmpl
	}

	return &Generator{
		chat:      chat,
		opts:      opts,
		templates: templates,
		logger:    logger.With("system", "generation"),
	}, nil
}

// Render returns the prompt for req.
func (g *Generator) Render(req workflow.GenerateRequest) (string, error) {
	tmpl, ok := g.templates[req.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return "", ErrTranscriptMissing
	}

	name := strings.TrimSpace(req.SubmitterName)
	if name == "" {
		name = g.opts.DefaultName
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	err := tmpl.Execute(&sb, promptData{
		Transcript:         req.Transcript,
		Name:               name,
		RepresentativeName: strings.TrimSpace(req.RepresentativeName),
		LocationKey:        strings.TrimSpace(req.LocationKey),
	})
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", req.Kind, err)
	}
	return sb.String(), nil
}

func (g *Generator) Generate(ctx context.Context, req workflow.GenerateRequest) (*submissions.Document, error) {
	prompt, err := g.Render(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := g.chat.Chat(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s document: chat: %w", req.Kind, err)
	}

	doc, err := formatting.Parse[submissions.Document](reply)
	if err != nil {
		return nil, fmt.Errorf("%s document: %w", req.Kind, err)
	}
	doc.Subject = strings.TrimSpace(doc.Subject)
	doc.Body = strings.TrimSpace(doc.Body)
	if doc.Body == "" {
		return nil, fmt.Errorf("%s document: %w", req.Kind, ErrEmptyDocument)
	}

	g.logger.InfoContext(
		ctx, "document generated",
		"kind", req.Kind,
		"duration", time.Since(start),
		"reply_size", formatting.FormatBytes(int64(len(reply)), 1),
	)
	return &doc, nil
}
