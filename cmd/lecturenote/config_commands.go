package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lecturenote/internal/config"
	"lecturenote/internal/services/gdrive"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key (or export NVIDIA_API_KEY) before running `lecturenote start`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Storage: %s (backend %s)\n", cfg.Paths.StorageDir, cfg.Store.Backend)
			fmt.Fprintf(out, "LLM: %s / %s\n", cfg.LLM.Provider, cfg.LLM.Model)
			if cfg.LLM.APIKey == "" {
				hint := cfg.LLMAPIKeyHint()
				if hint == "" {
					hint = "llm.api_key"
				}
				fmt.Fprintf(out, "Warning: no LLM API key configured (set llm.api_key or export %s)\n", hint)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newDriveCommand(ctx *commandContext) *cobra.Command {
	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "Google Drive export utilities",
	}
	driveCmd.AddCommand(newDriveAuthCommand(ctx))
	return driveCmd
}

func newDriveAuthCommand(ctx *commandContext) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Drive access and cache the OAuth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			oauthCfg, err := gdrive.LoadOAuthConfig(cfg.Drive.CredentialsFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(code) == "" {
				fmt.Fprintln(out, "Open this URL, approve access, then paste the authorization code:")
				fmt.Fprintln(out, gdrive.AuthURL(oauthCfg))
				fmt.Fprint(out, "Code: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && strings.TrimSpace(line) == "" {
					return fmt.Errorf("read authorization code: %w", err)
				}
				code = line
			}
			if err := gdrive.ExchangeAndSave(cmd.Context(), oauthCfg, code, cfg.Drive.TokenFile); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved Drive token to %s\n", cfg.Drive.TokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "Authorization code (prompted when omitted)")
	return cmd
}
