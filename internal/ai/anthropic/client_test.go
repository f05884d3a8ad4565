package anthropic

import (
	"context"
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type mockMessager struct {
	response *anthropic.Message
	err      error
	params   []anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = append(m.params, params)
	return m.response, m.err
}

func newMockMessage(texts ...string) *anthropic.Message {
	blocks := make([]anthropic.ContentBlockUnion, 0, len(texts))
	for _, t := range texts {
		blocks = append(blocks, anthropic.ContentBlockUnion{Type: "text", Text: t})
	}
	return &anthropic.Message{Content: blocks}
}

func TestGenerateContent(t *testing.T) {
	mock := &mockMessager{response: newMockMessage(`{"domain_fit": `, `7}`)}
	g := newGenerator(mock, Config{Model: "claude-test"}, nil)

	out, err := g.GenerateContent(context.Background(), " assess ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"domain_fit": 7}` {
		t.Fatalf("unexpected output %q", out)
	}

	if len(mock.params) != 1 {
		t.Fatalf("expected one request, got %d", len(mock.params))
	}
	p := mock.params[0]
	if string(p.Model) != "claude-test" || p.MaxTokens != defaultMaxTokens {
		t.Fatalf("unexpected params: model=%s max_tokens=%d", p.Model, p.MaxTokens)
	}
	if len(p.System) != 1 || p.System[0].Text != systemPrompt {
		t.Fatalf("expected system prompt, got %+v", p.System)
	}
	if g.Model() != "claude-test" {
		t.Fatalf("unexpected model %q", g.Model())
	}
}

func TestGenerateContentErrors(t *testing.T) {
	apiErr := errors.New("overloaded")
	if _, err := newGenerator(&mockMessager{err: apiErr}, Config{}, nil).GenerateContent(context.Background(), "p"); !errors.Is(err, apiErr) {
		t.Fatalf("expected wrapped api error, got %v", err)
	}

	empty := &mockMessager{response: &anthropic.Message{Content: []anthropic.ContentBlockUnion{}}}
	if _, err := newGenerator(empty, Config{}, nil).GenerateContent(context.Background(), "p"); err == nil {
		t.Fatal("expected error for empty response")
	}

	if _, err := newGenerator(empty, Config{}, nil).GenerateContent(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty prompt")
	}

	if _, err := NewGenerator("", Config{}, nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestDefaultModel(t *testing.T) {
	g := newGenerator(&mockMessager{}, Config{}, nil)
	if g.Model() != defaultModel {
		t.Fatalf("expected default model, got %q", g.Model())
	}
}
