// Package provider resolves the AI backend serving a given user: users may
// bring their own key and provider choice, everyone else gets the
// configured default.
package provider

import (
	"github.com/jobintel/jobintel/internal/adapter/ai"
	"github.com/jobintel/jobintel/internal/adapter/ai/gemini"
	"github.com/jobintel/jobintel/internal/adapter/ai/openaicompat"
	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
)

// Factory builds per-user AI clients.
type Factory struct {
	cfg     config.Config
	limiter ai.Limiter
}

// NewFactory constructs a factory sharing one limiter across all clients so
// the provider budget is global, not per user.
func NewFactory(cfg config.Config, limiter ai.Limiter) *Factory {
	return &Factory{cfg: cfg, limiter: limiter}
}

// For returns the client for a user's settings. An unset or unknown
// provider falls back to the OpenAI-compatible default.
func (f *Factory) For(settings domain.UserSettings) domain.AIClient {
	switch settings.LLMProvider {
	case domain.ProviderGemini:
		return gemini.New(f.cfg, gemini.Options{
			APIKey:    settings.LLMAPIKey,
			ChatModel: settings.PreferredModel,
		}, f.limiter)
	default:
		return openaicompat.New(f.cfg, openaicompat.Options{
			APIKey:    settings.LLMAPIKey,
			BaseURL:   settings.LLMBaseURL,
			ChatModel: settings.PreferredModel,
		}, f.limiter)
	}
}

// Default returns the client backed purely by server configuration, used by
// system tasks that run outside any user context.
func (f *Factory) Default() domain.AIClient {
	return openaicompat.New(f.cfg, openaicompat.Options{}, f.limiter)
}
