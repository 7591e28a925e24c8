package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateStore,
		c.validateDetection,
		c.validateAlignment,
		c.validateLLM,
		c.validateDrive,
		c.validateIngest,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendSQLite, StoreBackendJSON:
		return nil
	default:
		return fmt.Errorf("store.backend: unsupported value %q (expected sqlite or json)", c.Store.Backend)
	}
}

func (c *Config) validateDetection() error {
	if err := ValidateFrameInterval(c.Detection.FrameIntervalSec); err != nil {
		return fmt.Errorf("detection.%w", err)
	}
	threshold := c.Detection.SimilarityThreshold
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return errors.New("detection.similarity_threshold must be between 0 and 1")
	}
	if math.IsNaN(c.Detection.InfoChangeRatio) || c.Detection.InfoChangeRatio <= 1 {
		return errors.New("detection.info_change_ratio must be greater than 1")
	}
	if c.Detection.AnalysisWidth < 0 {
		return errors.New("detection.analysis_width must be zero (no downscale) or positive")
	}
	return nil
}

// ValidateFrameInterval checks a sampling interval against the supported range.
func ValidateFrameInterval(seconds float64) error {
	if seconds < 0.1 || seconds > 10 {
		return fmt.Errorf("frame_interval_sec must be between 0.1 and 10, got %g", seconds)
	}
	return nil
}

func (c *Config) validateAlignment() error {
	if c.Alignment.PaddingSec < 0 {
		return errors.New("alignment.padding_sec must be zero or positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if _, ok := llmProviderDefaults[c.LLM.Provider]; !ok {
		return fmt.Errorf("llm.provider: unsupported value %q (expected nvidia, openai, openrouter, or gemini)", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.Provider != ProviderGemini && strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set")
	}
	return nil
}

func (c *Config) validateDrive() error {
	if !c.Drive.Enabled {
		return nil
	}
	if c.Drive.CredentialsFile == "" {
		return errors.New("drive.credentials_file is required when drive export is enabled")
	}
	if c.Drive.TokenFile == "" {
		return errors.New("drive.token_file is required when drive export is enabled")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.WatchEnabled && c.Paths.InboxDir == "" {
		return errors.New("paths.inbox_dir must be set when ingest.watch_enabled is true")
	}
	return nil
}

// LLMAPIKeyHint returns the environment variables that can supply the API key
// for the configured provider.
func (c *Config) LLMAPIKeyHint() string {
	defaults, ok := llmProviderDefaults[c.LLM.Provider]
	if !ok {
		return ""
	}
	return strings.Join(defaults.envKeys, " or ")
}
