// Package gemini implements domain.AIClient against the native Gemini API.
package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/jobintel/jobintel/internal/adapter/ai"
	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/observability"
)

const (
	defaultChatModel  = "gemini-1.5-flash"
	defaultEmbedModel = "text-embedding-004"
)

// Options carry per-user overrides on top of config defaults.
type Options struct {
	APIKey    string
	ChatModel string
}

// Client talks to the Gemini generateContent/embedContent endpoints.
type Client struct {
	cfg     config.Config
	apiKey  string
	chat    string
	hc      *http.Client
	limiter ai.Limiter
}

// New builds a Gemini client. Empty option fields fall back to config and
// the package defaults.
func New(cfg config.Config, opts Options, limiter ai.Limiter) *Client {
	key := opts.APIKey
	if key == "" {
		key = cfg.GeminiAPIKey
	}
	chat := opts.ChatModel
	if chat == "" {
		chat = defaultChatModel
	}
	return &Client{
		cfg:     cfg,
		apiKey:  key,
		chat:    chat,
		hc:      &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
	}
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

func (c *Client) endpoint(model, verb string) string {
	return fmt.Sprintf("%s/models/%s:%s?key=%s",
		c.cfg.GeminiBaseURL, model, verb, url.QueryEscape(c.apiKey))
}

// Complete sends a single-turn generateContent call. jsonMode requests a
// JSON response mime type and strips any fence the model adds anyway.
func (c *Client) Complete(ctx domain.Context, prompt string, jsonMode bool) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: gemini api key missing", domain.ErrConfigMissing)
	}
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{"temperature": 0.2},
	}
	if jsonMode {
		body["generationConfig"] = map[string]any{
			"temperature":      0.2,
			"responseMimeType": "application/json",
		}
	}
	b, _ := json.Marshal(body)

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	op := func() error {
		if err := ai.WaitAllow(ctx, c.limiter, "gemini:chat"); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.chat, "generateContent"), bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("gemini", "chat").Inc()
		observability.AIRequestDuration.WithLabelValues("gemini", "chat").Observe(time.Since(start).Seconds())
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
		slog.Error("gemini chat failed after retries", slog.Any("error", err))
		return "", fmt.Errorf("op=gemini.Complete: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("op=gemini.Complete: %w: empty candidates", domain.ErrInternal)
	}
	reply := out.Candidates[0].Content.Parts[0].Text
	if jsonMode {
		reply = ai.StripFences(reply)
	}
	return reply, nil
}

// Embed returns one vector per text via batchEmbedContents, truncated by the
// provider to the configured dimensionality.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key missing", domain.ErrConfigMissing)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts to embed", domain.ErrInvalidArgument)
	}
	reqs := make([]map[string]any, len(texts))
	for i, t := range texts {
		reqs[i] = map[string]any{
			"model":                "models/" + defaultEmbedModel,
			"content":              map[string]any{"parts": []map[string]string{{"text": t}}},
			"outputDimensionality": c.cfg.EmbeddingDim,
		}
	}
	b, _ := json.Marshal(map[string]any{"requests": reqs})

	var out struct {
		Embeddings []struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	}
	op := func() error {
		if err := ai.WaitAllow(ctx, c.limiter, "gemini:embed"); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(defaultEmbedModel, "batchEmbedContents"), bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("gemini", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("gemini", "embed").Observe(time.Since(start).Seconds())
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
		slog.Error("gemini embed failed after retries", slog.Any("error", err))
		return nil, fmt.Errorf("op=gemini.Embed: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("op=gemini.Embed: %w: got %d vectors for %d inputs",
			domain.ErrInternal, len(out.Embeddings), len(texts))
	}
	res := make([][]float32, len(out.Embeddings))
	for i := range out.Embeddings {
		v := make([]float32, len(out.Embeddings[i].Values))
		for j := range out.Embeddings[i].Values {
			v[j] = float32(out.Embeddings[i].Values[j])
		}
		res[i] = v
	}
	return res, nil
}

func checkStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("ai provider rate limited", slog.String("provider", "gemini"), slog.String("op", op))
		return fmt.Errorf("%s: rate limited", op)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("ai provider 4xx", slog.String("provider", "gemini"), slog.String("op", op),
			slog.Int("status", resp.StatusCode), slog.String("body", string(snippet)))
		return backoff.Permanent(fmt.Errorf("%s status %d", op, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("ai provider non-2xx", slog.String("provider", "gemini"), slog.String("op", op),
			slog.Int("status", resp.StatusCode), slog.String("body", string(snippet)))
		return fmt.Errorf("%s status %d", op, resp.StatusCode)
	}
	return nil
}

var _ domain.AIClient = (*Client)(nil)
