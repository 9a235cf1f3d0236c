package generation_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/pathways/internal/generation"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/formatting"
)

var testOptions = generation.Options{DefaultName: "Concerned Citizen"}

// fakeChat answers every prompt with reply or err and records the prompts.
type fakeChat struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeChat) Chat(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func newGenerator(t *testing.T, chat generation.Chatter) *generation.Generator {
	t.Helper()
	g, err := generation.New(chat, testOptions, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func TestRenderPublic(t *testing.T) {
	g := newGenerator(t, nil)

	prompt, err := g.Render(workflow.GenerateRequest{
		Kind:       workflow.DocumentPublic,
		Transcript: "my payments were cut",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(prompt, "my payments were cut") {
		t.Error("prompt missing transcript")
	}
	if !strings.Contains(prompt, "Concerned Citizen") {
		t.Error("prompt missing default name")
	}
}

func TestRenderRepresentative(t *testing.T) {
	g := newGenerator(t, nil)

	prompt, err := g.Render(workflow.GenerateRequest{
		Kind:               workflow.DocumentRepresentative,
		Transcript:         "my payments were cut",
		SubmitterName:      "Sam",
		RepresentativeName: "Jane Smith",
		LocationKey:        "SW1A 1AA",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Jane Smith", "SW1A 1AA", "from Sam"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestRenderRepresentativeWithoutName(t *testing.T) {
	g := newGenerator(t, nil)

	prompt, err := g.Render(workflow.GenerateRequest{
		Kind:       workflow.DocumentRepresentative,
		Transcript: "text",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(prompt, "to their MP") {
		t.Error("expected generic greeting")
	}
	if strings.Contains(prompt, "constituent living in") {
		t.Error("location line should be omitted without a key")
	}
}

func TestRenderErrors(t *testing.T) {
	g := newGenerator(t, nil)

	tests := []struct {
		name string
		req  workflow.GenerateRequest
		want error
	}{
		{"unknown kind", workflow.GenerateRequest{Kind: "memo", Transcript: "x"}, generation.ErrUnknownKind},
		{"blank transcript", workflow.GenerateRequest{Kind: workflow.DocumentPublic, Transcript: "  "}, generation.ErrTranscriptMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Render(tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Render() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	chat := &fakeChat{
		reply: "```json\n{\"subject\": \" Benefit cuts \", \"body\": \"Dear MP,\\nPlease help.\"}\n```",
	}
	g := newGenerator(t, chat)

	doc, err := g.Generate(context.Background(), workflow.GenerateRequest{
		Kind:               workflow.DocumentRepresentative,
		Transcript:         "my payments were cut",
		RepresentativeName: "Jane Smith",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if doc.Subject != "Benefit cuts" {
		t.Errorf("Subject = %q, want Benefit cuts", doc.Subject)
	}
	if doc.Body != "Dear MP,\nPlease help." {
		t.Errorf("Body = %q", doc.Body)
	}
	if len(chat.prompts) != 1 {
		t.Fatalf("chat calls = %d, want 1", len(chat.prompts))
	}
	for _, want := range []string{"JSON object", "my payments were cut", "Jane Smith"} {
		if !strings.Contains(chat.prompts[0], want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateUnparseable(t *testing.T) {
	g := newGenerator(t, &fakeChat{reply: "I cannot help with that."})

	_, err := g.Generate(context.Background(), workflow.GenerateRequest{
		Kind:       workflow.DocumentPublic,
		Transcript: "text",
	})
	if !errors.Is(err, formatting.ErrParseFailed) {
		t.Errorf("Generate() error = %v, want ErrParseFailed", err)
	}
}

func TestGenerateEmptyBody(t *testing.T) {
	g := newGenerator(t, &fakeChat{reply: `{"subject": "s", "body": ""}`})

	_, err := g.Generate(context.Background(), workflow.GenerateRequest{
		Kind:       workflow.DocumentPublic,
		Transcript: "text",
	})
	if !errors.Is(err, generation.ErrEmptyDocument) {
		t.Errorf("Generate() error = %v, want ErrEmptyDocument", err)
	}
}

func TestGenerateChatError(t *testing.T) {
	upstream := errors.New("provider returned 500")
	g := newGenerator(t, &fakeChat{err: upstream})

	_, err := g.Generate(context.Background(), workflow.GenerateRequest{
		Kind:       workflow.DocumentPublic,
		Transcript: "text",
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("Generate() error = %v, want wrapped upstream error", err)
	}
	if workflow.Classify(err) != workflow.KindInternal {
		t.Errorf("Classify() = %v, want internal", workflow.Classify(err))
	}
}

func TestRenderSkipsChat(t *testing.T) {
	chat := &fakeChat{}
	g := newGenerator(t, chat)

	if _, err := g.Generate(context.Background(), workflow.GenerateRequest{Kind: "memo", Transcript: "x"}); !errors.Is(err, generation.ErrUnknownKind) {
		t.Errorf("Generate() error = %v, want ErrUnknownKind", err)
	}
	if len(chat.prompts) != 0 {
		t.Error("chat should not be called for an invalid request")
	}
}
