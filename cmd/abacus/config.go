package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/xraph/abacus/extension"
)

// cliConfig is the YAML file layout: the extension settings plus the
// accounts to open in the in-memory store.
type cliConfig struct {
	extension.Config `yaml:",inline"`

	Accounts []accountConfig `yaml:"accounts"`
}

type accountConfig struct {
	ID      string `yaml:"id"`
	Balance int64  `yaml:"balance"`
}

// loadConfig reads path over the extension defaults and overlays cost
// environment variables. An empty path skips the file.
func loadConfig(path string, lookup func(string) (string, bool)) (*cliConfig, error) {
	cfg := &cliConfig{Config: extension.DefaultConfig()}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	costs, err := cfg.Costs.WithEnv(lookup)
	if err != nil {
		return nil, err
	}
	cfg.Costs = costs

	if secret, ok := lookup("ABACUS_SECRET"); ok && secret != "" {
		cfg.Auth.Secret = secret
	}

	for i, a := range cfg.Accounts {
		if _, err := uuid.Parse(a.ID); err != nil {
			return nil, fmt.Errorf("accounts[%d]: id %q is not a uuid", i, a.ID)
		}
		if a.Balance < 0 {
			return nil, fmt.Errorf("accounts[%d]: negative balance", i)
		}
	}

	return cfg, nil
}

func (c *cliConfig) secret() ([]byte, error) {
	if c.Auth.Secret == "" {
		return nil, errors.New("auth.secret is not configured (set it in the config file or ABACUS_SECRET)")
	}
	return []byte(c.Auth.Secret), nil
}
