package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-orchestrator-be/pkg/llm"
)

const fetchBodyLimit = 64 * 1024

// HTTPFetchTool performs a GET against a caller-supplied URL and returns a
// bounded slice of the body.
type HTTPFetchTool struct {
	client *http.Client
}

func NewHTTPFetchTool() *HTTPFetchTool {
	return &HTTPFetchTool{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPFetchTool) Name() string        { return "http_fetch" }
func (t *HTTPFetchTool) Description() string { return "Fetches the content of a URL over HTTP GET" }

func (t *HTTPFetchTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return &Result{Success: false, Error: "missing required param: url"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("read body: %v", err)}, nil
	}

	return &Result{
		Success: resp.StatusCode < 400,
		Output:  string(body),
		Metadata: map[string]interface{}{
			"status_code":    resp.StatusCode,
			"content_length": len(body),
		},
	}, nil
}

// SummarizeTool condenses text through the inference provider.
type SummarizeTool struct {
	provider llm.LLMProvider
}

func NewSummarizeTool(provider llm.LLMProvider) *SummarizeTool {
	return &SummarizeTool{provider: provider}
}

func (t *SummarizeTool) Name() string        { return "summarize" }
func (t *SummarizeTool) Description() string { return "Summarizes a block of text" }

func (t *SummarizeTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	text, _ := params["text"].(string)
	if strings.TrimSpace(text) == "" {
		return &Result{Success: false, Error: "missing required param: text"}, nil
	}

	var prompt strings.Builder
	prompt.WriteString("Summarize the following text in at most 5 sentences. ")
	prompt.WriteString("Respond with only the summary.\n\n")
	prompt.WriteString(text)

	summary, err := t.provider.Generate(ctx, prompt.String(), llm.WithTemperature(0.3))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	return &Result{
		Success: true,
		Output:  summary,
		Metadata: map[string]interface{}{
			"input_length": len(text),
		},
	}, nil
}
