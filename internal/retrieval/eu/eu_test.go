package eu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spigell/eu-call-finder/internal/planner"
	"github.com/spigell/eu-call-finder/internal/retrieval"
)

const gridResponse = `{
  "totalResults": 2,
  "pageNumber": 1,
  "results": [
    {
      "reference": "r1",
      "metadata": {
        "identifier": ["HORIZON-CL5-2026-D3-01"],
        "title": ["Smart grids for local energy communities"],
        "descriptionByte": ["<p>Pilots of <b>microgrid</b> control.</p><p>The EU contribution is between EUR 2 and 3 million per project. Results must be open.</p>"],
        "deadlineDate": ["2026-09-02T17:00:00.000+0200"],
        "keywords": ["microgrid", "energy communities"],
        "tags": ["Energy", "Smart Grids"],
        "status": [31094502],
        "type": ["1"]
      }
    },
    {
      "reference": "r2",
      "metadata": {
        "title": ["No identifier"]
      }
    }
  ]
}`

const storageResponse = `{
  "totalResults": 1,
  "results": [
    {
      "metadata": {
        "identifier": ["HORIZON-CL5-2026-D3-01"],
        "title": ["Smart grids for local energy communities"]
      }
    },
    {
      "metadata": {
        "identifier": ["LIFE-2026-CET-BATT"],
        "callTitle": ["Battery storage for communities"],
        "status": "31094501",
        "type": ["8"]
      }
    }
  ]
}`

type portal struct {
	mu        sync.Mutex
	terms     []string
	queries   []map[string]any
	fields    [][]string
	responses map[string]string
}

func (p *portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Query().Get("apiKey") != apiKey {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var query map[string]any
	var fields []string
	for name, target := range map[string]any{"query": &query, "displayFields": &fields} {
		f, _, err := r.FormFile(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		f.Close()
		if err := json.Unmarshal(data, target); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	term := r.URL.Query().Get("text")
	p.mu.Lock()
	p.terms = append(p.terms, term)
	p.queries = append(p.queries, query)
	p.fields = append(p.fields, fields)
	body, ok := p.responses[term]
	p.mu.Unlock()

	if !ok {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = io.WriteString(w, body)
}

func testClient(url string) *Client {
	return New(Config{URL: url}, nil)
}

func TestSearchMergesTermsByIdentifier(t *testing.T) {
	p := &portal{responses: map[string]string{"smart grid": gridResponse, "battery storage": storageResponse}}
	srv := httptest.NewServer(p)
	defer srv.Close()

	req := retrieval.Request{
		Terms:  []string{"smart grid", "battery storage"},
		Filter: planner.Filter{Status: []string{StatusForthcoming, StatusOpen}, Types: []string{"1", "8"}, Period: "2021 - 2027"},
	}
	got, err := testClient(srv.URL).Search(context.Background(), req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 unique calls, got %d", len(got))
	}
	if strings.Join(p.terms, "|") != "smart grid|battery storage" {
		t.Fatalf("unexpected terms sent: %v", p.terms)
	}
	if len(p.fields[0]) != len(displayFields) {
		t.Fatalf("expected display fields to be sent, got %v", p.fields[0])
	}
	must := p.queries[0]["bool"].(map[string]any)["must"].([]any)
	if len(must) != 3 {
		t.Fatalf("expected type, status and period filters, got %v", must)
	}

	grid := got[0]
	if grid.ID != "HORIZON-CL5-2026-D3-01" || grid.Programme != "Horizon Europe" {
		t.Fatalf("unexpected call %+v", grid)
	}
	if grid.Description != "Pilots of microgrid control. The EU contribution is between EUR 2 and 3 million per project. Results must be open." {
		t.Fatalf("unexpected description %q", grid.Description)
	}
	if grid.Budget == nil || grid.Budget.Min != 2_000_000 || grid.Budget.Max != 3_000_000 {
		t.Fatalf("unexpected budget %+v from %q", grid.Budget, grid.BudgetText)
	}
	if grid.ContributionText == "" {
		t.Fatalf("expected contribution text")
	}
	if grid.Deadline.IsZero() || grid.Deadline.Month() != 9 {
		t.Fatalf("unexpected deadline %v", grid.Deadline)
	}
	if grid.Status != "open" || grid.ContentType != "topic" {
		t.Fatalf("unexpected status %q and type %q", grid.Status, grid.ContentType)
	}
	if len(grid.RequiredDomains) != 2 || grid.RequiredDomains[1] != "smart grids" {
		t.Fatalf("unexpected domains %v", grid.RequiredDomains)
	}
	if grid.URL != TopicURL(grid.ID) || !strings.HasSuffix(grid.URL, "/horizon-cl5-2026-d3-01") {
		t.Fatalf("unexpected url %q", grid.URL)
	}

	life := got[1]
	if life.Title != "Battery storage for communities" || life.Programme != "LIFE Programme" {
		t.Fatalf("unexpected call %+v", life)
	}
	if life.Status != "forthcoming" || life.ContentType != "cascade funding" {
		t.Fatalf("unexpected status %q and type %q", life.Status, life.ContentType)
	}
}

func TestSearchSkipsFailingTerm(t *testing.T) {
	p := &portal{responses: map[string]string{"smart grid": gridResponse}}
	srv := httptest.NewServer(p)
	defer srv.Close()

	got, err := testClient(srv.URL).Search(context.Background(), retrieval.Request{Terms: []string{"quantum", "smart grid"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected results of the working term, got %d", len(got))
	}
}

func TestSearchFailsWhenAllTermsFail(t *testing.T) {
	srv := httptest.NewServer(&portal{})
	defer srv.Close()

	if _, err := testClient(srv.URL).Search(context.Background(), retrieval.Request{Terms: []string{"a", "b"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchRejectsBooleanTerms(t *testing.T) {
	p := &portal{}
	srv := httptest.NewServer(p)
	defer srv.Close()

	if _, err := testClient(srv.URL).Search(context.Background(), retrieval.Request{Terms: []string{`"grid" AND "storage"`}}); err == nil {
		t.Fatal("expected validation error")
	}
	if len(p.terms) != 0 {
		t.Fatalf("no request must reach the portal, got %v", p.terms)
	}
}

func TestSearchHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(&portal{responses: map[string]string{"a": gridResponse}})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testClient(srv.URL).Search(ctx, retrieval.Request{Terms: []string{"a"}}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestProgrammeOf(t *testing.T) {
	tests := map[string]string{
		"HORIZON-EIC-2026-ACCELERATOR-01": "EIC Accelerator",
		"horizon-cl4-2026":                "Horizon Europe",
		"DIGITAL-2026-AI-01":              "Digital Europe",
		"CEF-T-2026":                      "Connecting Europe Facility",
		"UNKNOWN-1":                       "",
	}
	for id, want := range tests {
		if got := programmeOf(id); got != want {
			t.Errorf("%s: expected %q, got %q", id, want, got)
		}
	}
}

func TestSentenceWith(t *testing.T) {
	text := "Europe needs grids. Budget is EUR 5 million. The contribution is € 1 million."
	if got := sentenceWith(text, ""); got != "Budget is EUR 5 million." {
		t.Fatalf("unexpected budget sentence %q", got)
	}
	if got := sentenceWith(text, "contribution"); got != "The contribution is € 1 million." {
		t.Fatalf("unexpected contribution sentence %q", got)
	}
}
