// Package openaicompat implements domain.AIClient against any
// OpenAI-compatible API (OpenAI itself, or a per-user base URL override).
package openaicompat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/jobintel/jobintel/internal/adapter/ai"
	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/observability"
)

// Options carry the per-user overrides applied on top of config defaults.
type Options struct {
	APIKey    string
	BaseURL   string
	ChatModel string
}

// Client talks to an OpenAI-compatible chat/embeddings API.
type Client struct {
	cfg     config.Config
	apiKey  string
	baseURL string
	chat    string
	hc      *http.Client
	limiter ai.Limiter
}

// New builds a client from config defaults plus per-user options.
// Empty option fields fall back to the configured defaults.
func New(cfg config.Config, opts Options, limiter ai.Limiter) *Client {
	c := &Client{
		cfg:     cfg,
		apiKey:  textOr(opts.APIKey, cfg.OpenAIAPIKey),
		baseURL: textOr(opts.BaseURL, cfg.OpenAIBaseURL),
		chat:    textOr(opts.ChatModel, cfg.ChatModel),
		hc:      &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
	}
	return c
}

func textOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func (c *Client) backoffConfig(ctx domain.Context) backoff.BackOffContext {
	expo := backoff.NewExponentialBackOff()
	maxElapsed, initial, maxIvl, mult := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsed
	expo.InitialInterval = initial
	expo.MaxInterval = maxIvl
	expo.Multiplier = mult
	return backoff.WithContext(expo, ctx)
}

// Complete sends a single-turn chat completion. When jsonMode is set the
// prompt is reinforced with a JSON-only instruction and any markdown fence
// around the reply is stripped.
func (c *Client) Complete(ctx domain.Context, prompt string, jsonMode bool) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: openai api key missing", domain.ErrConfigMissing)
	}
	if jsonMode {
		prompt += "\n\nRespond with valid JSON only. No prose, no markdown fences."
	}
	body := map[string]any{
		"model":       c.chat,
		"temperature": 0.2,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if jsonMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	b, _ := json.Marshal(body)

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	op := func() error {
		if err := ai.WaitAllow(ctx, c.limiter, "openai:chat"); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		// rebuild the request each attempt; bodies are single-use
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openai", "chat").Inc()
		observability.AIRequestDuration.WithLabelValues("openai", "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if err := checkStatus(resp, "chat"); err != nil {
			return err
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	}
	if err := backoff.Retry(op, c.backoffConfig(ctx)); err != nil {
		slog.Error("openai chat failed after retries", slog.Any("error", err))
		return "", fmt.Errorf("op=openaicompat.Complete: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=openaicompat.Complete: %w: empty choices", domain.ErrInternal)
	}
	reply := out.Choices[0].Message.Content
	if jsonMode {
		reply = ai.StripFences(reply)
	}
	return reply, nil
}

// Embed returns one vector per input text, requested at the configured
// dimensionality so every stored vector is directly comparable.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key missing", domain.ErrConfigMissing)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts to embed", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model":      c.cfg.EmbeddingsModel,
		"input":      texts,
		"dimensions": c.cfg.EmbeddingDim,
	}
	b, _ := json.Marshal(body)

	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	op := func() error {
		if err := ai.WaitAllow(ctx, c.limiter, "openai:embed"); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openai", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("openai", "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if err := checkStatus(resp, "embed"); err != nil {
			return err
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	}
	if err := backoff.Retry(op, c.backoffConfig(ctx)); err != nil {
		slog.Error("openai embed failed after retries", slog.Any("error", err))
		return nil, fmt.Errorf("op=openaicompat.Embed: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("op=openaicompat.Embed: %w: got %d vectors for %d inputs",
			domain.ErrInternal, len(out.Data), len(texts))
	}
	res := make([][]float32, len(out.Data))
	for i := range out.Data {
		v := make([]float32, len(out.Data[i].Embedding))
		for j := range out.Data[i].Embedding {
			v[j] = float32(out.Data[i].Embedding[j])
		}
		res[i] = v
	}
	return res, nil
}

// checkStatus classifies an HTTP status for the retry loop: 429 and 5xx
// are retryable, other non-2xx are permanent.
func checkStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("ai provider rate limited", slog.String("provider", "openai"), slog.String("op", op))
		return fmt.Errorf("%s: rate limited", op)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("ai provider 4xx", slog.String("provider", "openai"), slog.String("op", op),
			slog.Int("status", resp.StatusCode), slog.String("body", string(snippet)))
		return backoff.Permanent(fmt.Errorf("%s status %d", op, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("ai provider non-2xx", slog.String("provider", "openai"), slog.String("op", op),
			slog.Int("status", resp.StatusCode), slog.String("body", string(snippet)))
		return fmt.Errorf("%s status %d", op, resp.StatusCode)
	}
	return nil
}

var _ domain.AIClient = (*Client)(nil)
