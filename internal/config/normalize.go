package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeLLM()
	c.normalizeTranscription()
	if err := c.normalizeDrive(); err != nil {
		return err
	}
	c.normalizeEvents()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.BaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.BaseURL), "/")
	if c.Paths.BaseURL == "" {
		c.Paths.BaseURL = defaultBaseURL
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.LLM.VisionModel = strings.TrimSpace(c.LLM.VisionModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)

	defaults, ok := llmProviderDefaults[c.LLM.Provider]
	if ok {
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = defaults.baseURL
		}
		if c.LLM.Model == "" {
			c.LLM.Model = defaults.model
		}
		if c.LLM.VisionModel == "" {
			c.LLM.VisionModel = defaults.visionModel
		}
		if c.LLM.APIKey == "" {
			for _, key := range defaults.envKeys {
				if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
					c.LLM.APIKey = strings.TrimSpace(value)
					break
				}
			}
		}
	}
	if c.LLM.VisionModel == "" {
		c.LLM.VisionModel = c.LLM.Model
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
	if c.Transcription.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeDrive() error {
	var err error
	if c.Drive.CredentialsFile, err = expandPath(strings.TrimSpace(c.Drive.CredentialsFile)); err != nil {
		return fmt.Errorf("drive.credentials_file: %w", err)
	}
	if c.Drive.TokenFile, err = expandPath(strings.TrimSpace(c.Drive.TokenFile)); err != nil {
		return fmt.Errorf("drive.token_file: %w", err)
	}
	c.Drive.FolderName = strings.TrimSpace(c.Drive.FolderName)
	if c.Drive.FolderName == "" {
		c.Drive.FolderName = defaultDriveFolder
	}
	return nil
}

func (c *Config) normalizeEvents() {
	c.Events.RedisAddr = strings.TrimSpace(c.Events.RedisAddr)
	if value, ok := os.LookupEnv("REDIS_ADDR"); ok && strings.TrimSpace(value) != "" && c.Events.RedisAddr == defaultRedisAddr {
		c.Events.RedisAddr = strings.TrimSpace(value)
	}
	if c.Events.RedisAddr == "" {
		c.Events.RedisAddr = defaultRedisAddr
	}
	c.Events.Channel = strings.TrimSpace(c.Events.Channel)
	if c.Events.Channel == "" {
		c.Events.Channel = defaultEventsChannel
	}
	if c.Events.SnapshotTTL <= 0 {
		c.Events.SnapshotTTL = defaultSnapshotTTL
	}
	c.Events.NtfyTopic = strings.TrimSpace(c.Events.NtfyTopic)
	if c.Events.NtfyTimeout <= 0 {
		c.Events.NtfyTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeAPI() {
	origins := make([]string, 0, len(c.API.CORSOrigins))
	seen := make(map[string]struct{}, len(c.API.CORSOrigins))
	for _, origin := range c.API.CORSOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		origins = append(origins, trimmed)
	}
	c.API.CORSOrigins = origins
	if c.API.URLExpirySeconds <= 0 {
		c.API.URLExpirySeconds = defaultURLExpirySeconds
	}
	if c.API.BodyLimitMB <= 0 {
		c.API.BodyLimitMB = defaultBodyLimitMB
	}
	c.API.SigningKey = strings.TrimSpace(c.API.SigningKey)
	if c.API.SigningKey == "" {
		if value, ok := os.LookupEnv("LECTURENOTE_SIGNING_KEY"); ok {
			c.API.SigningKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.StreamCapacity <= 0 {
		c.Logging.StreamCapacity = defaultStreamCapacity
	}
}
