package filtering

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/retrieval"
	"go.uber.org/zap"
)

func found() []*calls.Call {
	return []*calls.Call{
		{ID: "A", Programme: "Horizon Europe", Status: "open"},
		{ID: "B", Programme: "LIFE", Status: "closed"},
		{ID: "C", Programme: "Digital Europe", Status: "forthcoming"},
		{ID: "D", Programme: "LIFE", Status: "open"},
	}
}

func ids(items []*calls.Call) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}

func TestStepsDefaultsKeepEverything(t *testing.T) {
	f := New(Steps(Config{}), zap.NewNop())

	in := found()
	out, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !slices.Equal(ids(out), []string{"A", "B", "C", "D"}) {
		t.Fatalf("unexpected calls %v", ids(out))
	}
	for _, s := range f.Describe() {
		if s.Enabled {
			t.Fatalf("filter %s must be disabled by default", s.Name)
		}
	}
}

func TestStepsApplyConfiguredFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	reviewed := &calls.Calls{Items: []*calls.Call{{ID: "C"}}}
	if err := reviewed.ToExcluded(time.Now()).ToFile(path); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	f := New(Steps(Config{ExcludeFile: path, Programmes: []string{"life"}, SkipClosed: true}), zap.NewNop())

	in := found()
	out, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !slices.Equal(ids(out), []string{"A"}) {
		t.Fatalf("unexpected calls %v", ids(out))
	}
	if len(in) != 4 || in[1].ID != "B" {
		t.Fatalf("input slice must not be modified, got %v", ids(in))
	}

	statuses := f.Describe()
	if len(statuses) != 3 || statuses[2].Details["path"] != path {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
}

func TestExcludeFileReadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := New(Steps(Config{ExcludeFile: path}), zap.NewNop()).Run(context.Background(), found())
	if err == nil {
		t.Fatal("expected error for a broken exclude file")
	}
}

type stubAdapter struct {
	items []*calls.Call
	err   error
}

func (s stubAdapter) Search(context.Context, retrieval.Request) ([]*calls.Call, error) {
	return s.items, s.err
}

func TestAdapterFiltersResults(t *testing.T) {
	f := New(Steps(Config{SkipClosed: true}), zap.NewNop())
	req := retrieval.Request{Terms: []string{"energy"}}

	out, err := NewAdapter(stubAdapter{items: found()}, f).Search(context.Background(), req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !slices.Equal(ids(out), []string{"A", "C", "D"}) {
		t.Fatalf("unexpected calls %v", ids(out))
	}

	upstream := errors.New("portal down")
	if _, err := NewAdapter(stubAdapter{err: upstream}, f).Search(context.Background(), req); !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(Steps(Config{SkipClosed: true}), nil).Run(ctx, found()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
