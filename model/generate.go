package model

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"mindvault/types"
)

// Generator sends a composed prompt to the text-generation endpoint
// and returns the completed text.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type GenerateOptions struct {
	System string
	// JSONFormat asks the backend for a single non-streamed JSON
	// object instead of an NDJSON stream.
	JSONFormat bool
}

type OllamaGenerator struct {
	apiURL string
	model  string
	client *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func NewOllamaGenerator(cfg types.Config) *OllamaGenerator {
	return &OllamaGenerator{
		apiURL: cfg.GenerateURL,
		model:  cfg.GenerateModel,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Generate handles both response shapes the backend produces: a single
// JSON object with a `response` field, or newline-delimited JSON
// objects whose `response` fragments are concatenated in arrival
// order. Lines that fail to parse are expected and skipped.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	req := generateRequest{
		Model:  g.model,
		System: opts.System,
		Prompt: prompt,
		Stream: !opts.JSONFormat,
	}
	if opts.JSONFormat {
		req.Format = "json"
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", types.NewGenerationServiceError(0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewGenerationServiceError(resp.StatusCode, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", types.NewGenerationServiceError(resp.StatusCode, string(body))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var genResp generateResponse
		if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
			return genResp.Response, nil
		}
	}

	output := collectStream(body)
	if output == "" {
		return "", types.NewGenerationServiceError(resp.StatusCode, "empty streamed response: "+string(body))
	}
	return output, nil
}

// collectStream concatenates the `response` fragments of an NDJSON
// body in arrival order. Partial or corrupt lines are skipped.
func collectStream(body []byte) string {
	var b strings.Builder
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		b.WriteString(chunk.Response)
	}
	return b.String()
}
