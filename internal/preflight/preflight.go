package preflight

import (
	"context"

	"lecturenote/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options narrows which checks RunAll performs.
type Options struct {
	// SkipLLM omits the network round trip to the LLM provider.
	SkipLLM bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir))
	results = append(results, CheckFreeSpace("Storage free space", cfg.Paths.StorageDir, MinFreeBytes))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Ingest.WatchEnabled {
		results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir))
	}

	if cfg.Drive.Enabled {
		results = append(results, CheckReadableFile("Drive credentials", cfg.Drive.CredentialsFile))
	}

	if !opts.SkipLLM {
		results = append(results, CheckLLM(ctx, "Note LLM", LLMConfig(cfg, false)))
		if cfg.LLM.VisionModel != "" && cfg.LLM.VisionModel != cfg.LLM.Model {
			results = append(results, CheckLLM(ctx, "Vision LLM", LLMConfig(cfg, true)))
		}
	}

	return results
}
