package extension

import (
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/randstr"
)

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Mode == "" {
		cfg.Mode = defaults.Mode
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	cfg.Costs = mergeCosts(cfg.Costs, defaults.Costs)
	cfg.RandomStrings = mergeRandomStrings(cfg.RandomStrings, defaults.RandomStrings)
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableRefund {
		yamlConfig.DisableRefund = true
	}
	if programmaticConfig.Auth.Unverified {
		yamlConfig.Auth.Unverified = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Mode == "" {
		yamlConfig.Mode = programmaticConfig.Mode
	}
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.Auth.Secret == "" {
		yamlConfig.Auth.Secret = programmaticConfig.Auth.Secret
	}
	if yamlConfig.Auth.Issuer == "" {
		yamlConfig.Auth.Issuer = programmaticConfig.Auth.Issuer
	}
	if yamlConfig.Auth.Audience == "" {
		yamlConfig.Auth.Audience = programmaticConfig.Auth.Audience
	}

	// Nested structs: YAML takes precedence, programmatic fills gaps.
	yamlConfig.Costs = mergeCosts(yamlConfig.Costs, programmaticConfig.Costs)
	yamlConfig.RandomStrings = mergeRandomStrings(yamlConfig.RandomStrings, programmaticConfig.RandomStrings)

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}

func mergeCosts(c, fallback operation.Costs) operation.Costs {
	for _, k := range operation.Kinds {
		if c.For(k) == 0 {
			c = c.With(k, fallback.For(k))
		}
	}
	return c
}

func mergeRandomStrings(c, fallback randstr.Config) randstr.Config {
	if c.BaseURL == "" {
		c.BaseURL = fallback.BaseURL
	}
	if c.Length == 0 {
		c.Length = fallback.Length
	}
	if c.Timeout == 0 {
		c.Timeout = fallback.Timeout
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = fallback.BreakerFailures
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = fallback.BreakerTimeout
	}
	return c
}
