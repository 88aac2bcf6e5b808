// Package embedding provides the embedding provider contract, HTTP-backed
// providers, a deterministic offline fallback, and the resilience wrappers
// (circuit breaker, rate limiter, cache) that sit between the store and a
// real provider.
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/pkg/types"
)

// Provider converts content into fixed-length numeric vectors. The numeric
// output is opaque to the rest of the system beyond this contract.
type Provider interface {
	// Embed converts text to a vector. May fail or time out; callers that
	// must not fail wrap the provider with NewResilient.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedImage converts raw image bytes to a vector for image-based
	// search. Providers without image support return ErrProviderUnavailable.
	EmbedImage(ctx context.Context, data []byte) ([]float64, error)

	// Dimension is the length of every vector this provider produces.
	Dimension() int
}

// NewFromConfig builds the configured provider wrapped with the full
// resilience stack: cache → limiter/breaker/timeout → fallback.
func NewFromConfig(cfg config.EmbeddingConfig) (Provider, error) {
	var primary Provider
	switch cfg.Provider {
	case "ollama":
		primary = NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimension)
	case "openai":
		primary = NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.Dimension)
	case "fallback", "":
		return NewFallbackProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}

	resilient := NewResilient(primary, ResilientConfig{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	return NewCachingProvider(resilient, cfg.CacheEntries)
}

// --- Ollama provider ---

// OllamaProvider uses a local Ollama instance for text embeddings.
type OllamaProvider struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaProvider creates a provider against Ollama's embeddings API.
func NewOllamaProvider(baseURL, model string, dim int) *OllamaProvider {
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	body, _ := json.Marshal(ollamaRequest{Model: p.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama request failed: %v", types.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: ollama error %d: %s", types.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("%w: ollama returned no embedding", types.ErrProviderUnavailable)
	}
	return result.Embedding, nil
}

func (p *OllamaProvider) EmbedImage(ctx context.Context, data []byte) ([]float64, error) {
	return nil, fmt.Errorf("%w: ollama provider has no image embedding support", types.ErrProviderUnavailable)
}

func (p *OllamaProvider) Dimension() int { return p.dim }

// --- OpenAI-compatible provider ---

// OpenAIProvider uses any OpenAI-compatible embedding API.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	dim     int
	client  *http.Client
}

type openAIEmbedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIProvider creates a provider against an OpenAI-compatible API.
func NewOpenAIProvider(baseURL, apiKey, model string, dim int) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return p.embed(ctx, text)
}

// EmbedImage submits the image as a base64 payload. Most embedding models
// reject this; the error keeps the caller on the fallback path.
func (p *OpenAIProvider) EmbedImage(ctx context.Context, data []byte) ([]float64, error) {
	return p.embed(ctx, base64.StdEncoding.EncodeToString(data))
}

func (p *OpenAIProvider) embed(ctx context.Context, input string) ([]float64, error) {
	body, _ := json.Marshal(openAIEmbedRequest{Input: input, Model: p.model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai request failed: %v", types.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: openai error %d: %s", types.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	var result openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%w: openai returned no embedding", types.ErrProviderUnavailable)
	}
	return result.Data[0].Embedding, nil
}

func (p *OpenAIProvider) Dimension() int { return p.dim }
