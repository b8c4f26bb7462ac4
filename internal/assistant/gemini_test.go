package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"datamentor/internal/dataset"
	"datamentor/internal/sandbox"
)

func geminiStub(t *testing.T, inner string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		resp := map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": inner}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestGeminiPlanDecodesPlan(t *testing.T) {
	planJSON := `{"plan_title":"Clean sales data","steps":[{"step_name":"Row 1: Imports","explanation":"load libs","code":"import pandas as pd"}]}`
	srv := geminiStub(t, planJSON)
	defer srv.Close()

	p := NewGemini("test-key").WithBaseURL(srv.URL).WithHTTPClient(srv.Client())
	plan, err := p.Plan(context.Background(), sandbox.Summary{Columns: []string{"a"}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Title != "Clean sales data" || len(plan.Steps) != 1 || plan.Steps[0].Code != "import pandas as pd" {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestGeminiFixDecodesSuggestion(t *testing.T) {
	srv := geminiStub(t, `{"explanation":"column typo","suggested_code":"df['amount']"}`)
	defer srv.Close()

	p := NewGemini("test-key").WithBaseURL(srv.URL).WithHTTPClient(srv.Client())
	fix, err := p.Fix(context.Background(), "df['amnt']", "KeyError", sandbox.Summary{}, nil)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if fix.SuggestedCode != "df['amount']" {
		t.Fatalf("unexpected fix %+v", fix)
	}
}

func TestGeminiMissingCredential(t *testing.T) {
	p := NewGemini("")
	if _, err := p.Plan(context.Background(), sandbox.Summary{}); err != ErrMissingCredential {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestGeminiNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewGemini("test-key").WithBaseURL(srv.URL).WithHTTPClient(srv.Client())
	if _, err := p.Plan(context.Background(), sandbox.Summary{}); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestPlanCellsLayout(t *testing.T) {
	plan := CleaningPlan{
		Title: "Plan",
		Steps: []CleaningStep{
			{Name: "Row 1: Imports", Explanation: "load libs", Code: "import pandas as pd"},
			{Name: "Row 2: Load", Explanation: "read csv", Code: "df = pd.read_csv('f.csv')"},
		},
	}
	cells := PlanCells(plan)
	if len(cells) != 5 {
		t.Fatalf("expected 5 cells, got %d", len(cells))
	}
	if cells[0].Type != dataset.CellMarkdown || !strings.Contains(cells[0].Content, "# Plan") {
		t.Fatalf("bad title cell %+v", cells[0])
	}
	for i := 0; i < len(plan.Steps); i++ {
		md, code := cells[1+2*i], cells[2+2*i]
		if md.Type != dataset.CellMarkdown || !strings.Contains(md.Content, plan.Steps[i].Name) {
			t.Fatalf("bad explanation cell %+v", md)
		}
		if code.Type != dataset.CellCode || code.Content != plan.Steps[i].Code {
			t.Fatalf("bad code cell %+v", code)
		}
	}
	for _, c := range cells {
		if v, ok := c.Metadata["isAI"].(bool); !ok || !v {
			t.Fatalf("cell %s missing isAI tag", c.ID)
		}
	}
}
