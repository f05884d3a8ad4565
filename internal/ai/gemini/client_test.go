package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	mu      sync.Mutex
	queue   []fakeResponse
	prompts []string
	models  []string
	configs []*genai.GenerateContentConfig
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompts = append(f.prompts, p.Text)
		}
	}
	f.models = append(f.models, model)
	f.configs = append(f.configs, config)

	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func (f *fakeModels) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.models)
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, &genai.Part{Text: t})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func testGenerator(models contentModels, retries int) *Generator {
	return newGenerator(models, Config{Model: "gemini-pro", MaxRetries: retries, RetryDelay: -1}, zap.NewNop())
}

func TestGeneratorJoinsTextParts(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(textResponse(" {\"a\": ", "", "1} "), nil)

	g := testGenerator(models, 1)
	out, err := g.GenerateContent(context.Background(), "  judge this  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "{\"a\":\n1}" {
		t.Fatalf("unexpected output %q", out)
	}
	if models.prompts[0] != "judge this" || models.models[0] != "gemini-pro" {
		t.Fatalf("unexpected request: %v %v", models.prompts, models.models)
	}
	if cfg := models.configs[0]; cfg == nil || cfg.Temperature == nil || *cfg.Temperature != 0 {
		t.Fatalf("expected deterministic temperature, got %+v", cfg)
	}
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(textResponse("retry ok"), nil)

	out, err := testGenerator(models, 2).GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "retry ok" {
		t.Fatalf("unexpected output: %q", out)
	}
	if models.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", models.calls())
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)

	_, err := testGenerator(models, 2).GenerateContent(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if models.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", models.calls())
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	_, err := testGenerator(models, 3).GenerateContent(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if models.calls() != 1 {
		t.Fatalf("expected single call, got %d", models.calls())
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	if _, err := testGenerator(models, 3).GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if models.calls() != 1 {
		t.Fatalf("expected single call, got %d", models.calls())
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(&genai.GenerateContentResponse{}, nil)

	if _, err := testGenerator(models, 1).GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty response")
	}
	if _, err := testGenerator(models, 1).GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestRequestedDelay(t *testing.T) {
	if d, ok := requestedDelay("Please retry in 3.5s."); !ok || d.Seconds() != 3.5 {
		t.Fatalf("unexpected delay %v ok=%v", d, ok)
	}
	if _, ok := requestedDelay("quota exhausted"); ok {
		t.Fatal("expected no delay")
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), " ", Config{}, nil); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
