package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lecturenote/internal/api"
	"lecturenote/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if addr := strings.TrimSpace(*c.apiFlag); addr != "" {
			return addr
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Paths.APIBind
}

func (c *commandContext) client() *api.Client {
	return api.NewClient(c.apiAddress(), nil)
}

// withClient runs fn against the daemon API and rewrites connection failures
// into a hint about starting the daemon.
func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client := c.client()
	if err := fn(client); err != nil {
		return wrapClientError(err, client.BaseURL())
	}
	return nil
}

func wrapClientError(err error, address string) error {
	if errors.Is(err, api.ErrUnavailable) {
		if address == "" {
			return errors.New("connect to daemon: API disabled (paths.api_bind is empty)")
		}
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `lecturenote start`", address)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
