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

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OllamaEmbedder calls the Ollama embeddings endpoint. One outbound
// call per invocation, no cache, no retry: retries are the caller's
// decision, not this client's.
type OllamaEmbedder struct {
	apiURL string
	model  string
	client *http.Client
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(cfg types.Config) *OllamaEmbedder {
	return &OllamaEmbedder{
		apiURL: cfg.EmbeddingURL,
		model:  cfg.EmbeddingModel,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, types.NewEmbeddingServiceError(0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewEmbeddingServiceError(resp.StatusCode, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, types.NewEmbeddingServiceError(resp.StatusCode, string(respBody))
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, types.NewEmbeddingServiceError(resp.StatusCode, "non-JSON response: "+string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, types.NewEmbeddingServiceError(resp.StatusCode, "malformed payload: "+string(respBody))
	}
	if len(embResp.Embedding) == 0 {
		return nil, types.NewEmbeddingServiceError(resp.StatusCode, "payload has no embedding vector")
	}

	embedding := make([]float32, len(embResp.Embedding))
	for i, v := range embResp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}
