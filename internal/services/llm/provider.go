package llm

import (
	"context"
	"fmt"
	"strings"

	"lecturenote/internal/services"
)

// Provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderNVIDIA     = "nvidia"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Request is a single completion: a system prompt, a user prompt and an
// optional inline image for vision models.
type Request struct {
	System    string
	Prompt    string
	Image     []byte
	ImageMIME string
	// JSON asks the provider for a JSON object response.
	JSON bool
}

func (r Request) validate(op string) error {
	if strings.TrimSpace(r.Prompt) == "" && len(r.Image) == 0 {
		return fmt.Errorf("%s: prompt or image required", op)
	}
	return nil
}

func (r Request) mime() string {
	if r.ImageMIME != "" {
		return r.ImageMIME
	}
	return "image/jpeg"
}

// Completer produces a text completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Config captures the runtime settings required to talk to a provider.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	Referer        string
	Title          string
	TimeoutSeconds int
}

// New returns the Completer for cfg.Provider.
func New(cfg Config, opts ...Option) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "init", "api key required for provider "+cfg.Provider, nil)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "init", "model required", nil)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini:
		return NewGeminiClient(cfg), nil
	case ProviderOpenAI, ProviderNVIDIA, ProviderOpenRouter, "":
		return NewClient(cfg, opts...), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "llm", "init", fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
}
