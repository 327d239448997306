package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"deepscan/internal/apiclient"
	"deepscan/internal/config"
)

type commandContext struct {
	configFlag *string
	serverFlag *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, serverFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		serverFlag: serverFlag,
		tokenFlag:  tokenFlag,
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

// serverAddress returns the remote server address, or "" for local mode.
func (c *commandContext) serverAddress() string {
	if c.serverFlag != nil {
		if value := strings.TrimSpace(*c.serverFlag); value != "" {
			return value
		}
	}
	return strings.TrimSpace(os.Getenv("DEEPSCAN_SERVER"))
}

func (c *commandContext) remote() bool {
	return c.serverAddress() != ""
}

func (c *commandContext) token() string {
	if c.tokenFlag != nil {
		if value := strings.TrimSpace(*c.tokenFlag); value != "" {
			return value
		}
	}
	if c.config != nil {
		return c.config.Server.APIToken
	}
	return ""
}

func (c *commandContext) client() (*apiclient.Client, error) {
	client, err := apiclient.New(c.serverAddress(), c.token())
	if err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}
	return client, nil
}

func wrapClientError(err error, addr string) error {
	if apiclient.IsUnavailable(err) {
		return fmt.Errorf("connect to server %s: %w; start it with `deepscan serve` or drop --server to run locally", addr, err)
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
