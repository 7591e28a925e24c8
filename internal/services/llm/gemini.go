package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient completes requests through the Gemini API.
type GeminiClient struct {
	cfg Config

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient returns a Gemini-backed Completer. The SDK client is
// created on first use.
func NewGeminiClient(cfg Config) *GeminiClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	return &GeminiClient{cfg: cfg}
}

// Model returns the configured model identifier.
func (g *GeminiClient) Model() string {
	return g.cfg.Model
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	g.client = client
	return client, nil
}

// Complete sends the request as a single user turn with an optional inline image.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.validate("gemini complete"); err != nil {
		return "", err
	}
	client, err := g.sdk(ctx)
	if err != nil {
		return "", err
	}

	parts := make([]*genai.Part, 0, 2)
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		parts = append(parts, genai.NewPartFromText(prompt))
	}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, req.mime()))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	temperature := float32(g.cfg.Temperature)
	genCfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if g.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.cfg.MaxTokens)
	}
	if system := strings.TrimSpace(req.System); system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	result, err := client.Models.GenerateContent(ctx, g.cfg.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}
	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return "", errors.New("gemini: empty response")
	}
	return content, nil
}
