package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"datamentor/internal/sandbox"
)

var _ Planner = (*GeminiPlanner)(nil)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-3-flash-preview"
)

// GeminiPlanner implements Planner against the Gemini generateContent REST
// endpoint. JSON in, JSON out; the response body is constrained to a JSON
// mime type so the plan can be decoded directly.
type GeminiPlanner struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini constructs a planner from an explicit API key.
func NewGemini(apiKey string) *GeminiPlanner {
	return &GeminiPlanner{apiKey: apiKey, model: defaultGeminiModel, baseURL: defaultGeminiBaseURL, client: http.DefaultClient}
}

// OpenGeminiFromEnv reads GEMINI_API_KEY (optionally DATAMENTOR_GEMINI_MODEL).
// A missing key is not an error at construction; it becomes
// ErrMissingCredential on first use.
func OpenGeminiFromEnv() *GeminiPlanner {
	p := NewGemini(os.Getenv("GEMINI_API_KEY"))
	if m := os.Getenv("DATAMENTOR_GEMINI_MODEL"); m != "" {
		p.model = m
	}
	return p
}

// WithBaseURL overrides the endpoint (tests, proxies).
func (p *GeminiPlanner) WithBaseURL(u string) *GeminiPlanner {
	p.baseURL = strings.TrimSuffix(u, "/")
	return p
}

// WithHTTPClient overrides the HTTP client. Timeouts live here; no retry
// policy is layered on top.
func (p *GeminiPlanner) WithHTTPClient(c *http.Client) *GeminiPlanner {
	p.client = c
	return p
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Plan asks for a cleaning plan for the summarized dataset.
func (p *GeminiPlanner) Plan(ctx context.Context, summary sandbox.Summary) (CleaningPlan, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return CleaningPlan{}, fmt.Errorf("encode summary: %w", err)
	}
	prompt := fmt.Sprintf("Dataset analysis summary:\n%s\n\nConstruct a step-by-step cleaning plan for this dataset. Respond only in JSON with fields plan_title and steps[{step_name, explanation, code}].", summaryJSON)
	var plan CleaningPlan
	if err := p.generate(ctx, planSystemPrompt, prompt, &plan); err != nil {
		return CleaningPlan{}, err
	}
	return plan, nil
}

// Fix asks for a corrected version of a failed cell.
func (p *GeminiPlanner) Fix(ctx context.Context, code, errMsg string, summary sandbox.Summary, history []string) (FixSuggestion, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return FixSuggestion{}, fmt.Errorf("encode summary: %w", err)
	}
	prompt := fmt.Sprintf("The following pandas code failed.\n\nCode:\n%s\n\nError:\n%s\n\nDataset summary:\n%s\n\nPrior attempts:\n%s\n\nRespond only in JSON with fields explanation and suggested_code.",
		code, errMsg, summaryJSON, strings.Join(history, "\n---\n"))
	var fix FixSuggestion
	if err := p.generate(ctx, fixSystemPrompt, prompt, &fix); err != nil {
		return FixSuggestion{}, err
	}
	return fix, nil
}

func (p *GeminiPlanner) generate(ctx context.Context, system, prompt string, out any) error {
	if p.apiKey == "" {
		return ErrMissingCredential
	}
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig:  geminiGenConfig{ResponseMimeType: "application/json"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("call assistant: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assistant returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("assistant returned no candidates")
	}
	text := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode assistant payload: %w", err)
	}
	return nil
}

const planSystemPrompt = `You are a data engineering mentor. Analyze the dataset summary and produce an ordered cleaning plan. Each step must contain a short step_name, a markdown explanation, and safe, commented pandas code that assumes the dataframe is named df.`

const fixSystemPrompt = `You are a data engineering mentor. Given failing pandas code and its error, explain the root cause briefly and propose corrected code that assumes the dataframe is named df.`
