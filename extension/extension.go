// Package extension provides the Forge extension adapter for abacus.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.abacus" or "abacus" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/abacus"
	"github.com/xraph/abacus/arith"
	"github.com/xraph/abacus/identity"
	"github.com/xraph/abacus/randstr"
	"github.com/xraph/abacus/store"
	"github.com/xraph/abacus/store/memory"
	"github.com/xraph/abacus/store/mongo"
	"github.com/xraph/abacus/store/postgres"
	"github.com/xraph/abacus/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "abacus"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Pay-per-operation arithmetic engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts abacus as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *abacus.Engine
	store      store.Store
	db         *grove.DB
	verifier   identity.Verifier
	engineOpts []abacus.Option
}

// New creates a new abacus Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *abacus.Engine { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := openStore(e.config.StoreDriver, e.db)
		if err != nil {
			return err
		}
		e.store = s
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	e.engine = abacus.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*abacus.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("abacus: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("abacus: store not initialized")
	}
	return e.store.Ping(ctx)
}

// openStore builds the backend for driver around db. Without a db the
// memory store is returned.
func openStore(driver string, db *grove.DB) (store.Store, error) {
	if db == nil {
		return memory.New(), nil
	}
	switch driver {
	case DriverPostgres, "":
		return postgres.New(db), nil
	case DriverSQLite:
		return sqlite.New(db), nil
	case DriverMongo:
		return mongo.New(db), nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("abacus: unknown store driver %q", driver)
	}
}

// buildEngineOpts constructs abacus.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]abacus.Option, error) {
	opts := make([]abacus.Option, 0, len(e.engineOpts)+5)

	mode, err := arith.ParseMode(e.config.Mode)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		abacus.WithMode(mode),
		abacus.WithCosts(e.config.Costs),
		abacus.WithRefundOnFailure(!e.config.DisableRefund),
		abacus.WithAutoMigrate(!e.config.DisableMigrate),
	)

	verifier := e.verifier
	if verifier == nil {
		verifier, err = e.config.Auth.Verifier()
		if err != nil {
			return nil, err
		}
	}
	opts = append(opts, abacus.WithVerifier(verifier))

	client, err := randstr.New(e.config.RandomStrings)
	if err != nil {
		return nil, fmt.Errorf("abacus: random string client: %w", err)
	}
	opts = append(opts, abacus.WithGenerator(client))

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// Verifier builds the identity.Verifier described by c.
func (c AuthConfig) Verifier() (identity.Verifier, error) {
	if c.Unverified {
		return identity.NewUnverifiedVerifier(), nil
	}
	if c.Secret == "" {
		return nil, errors.New("abacus: auth.secret is required unless auth.unverified is set")
	}
	var hopts []identity.HMACOption
	if c.Issuer != "" {
		hopts = append(hopts, identity.WithIssuer(c.Issuer))
	}
	if c.Audience != "" {
		hopts = append(hopts, identity.WithAudience(c.Audience))
	}
	return identity.NewHMACVerifier([]byte(c.Secret), hopts...), nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("abacus: configuration is required but not found in config files; " +
				"ensure 'extensions.abacus' or 'abacus' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	if err := e.config.Costs.Validate(); err != nil {
		return err
	}

	e.Logger().Debug("abacus: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_refund", e.config.DisableRefund),
		forge.F("mode", e.config.Mode),
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("random_strings_url", e.config.RandomStrings.BaseURL),
		forge.F("auth_unverified", e.config.Auth.Unverified),
	)

	return nil
}

// configKeys are the config file keys searched, namespaced key first.
var configKeys = []string{"extensions.abacus", "abacus"}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	cfg, key, err := bindConfig(
		func(key string) bool { return cm.IsSet(key) },
		func(key string, target any) error { return cm.Bind(key, target) },
	)
	if err != nil {
		e.Logger().Warn("abacus: failed to bind config",
			forge.F("error", err.Error()),
		)
	}
	if key == "" {
		return Config{}, false
	}

	e.Logger().Debug("abacus: loaded config from file",
		forge.F("key", key),
	)
	return cfg, true
}

// bindConfig binds the first of configKeys that is set and binds cleanly.
// It returns the key used, or "" when none did, along with every bind
// error met on the way.
func bindConfig(isSet func(string) bool, bind func(string, any) error) (Config, string, error) {
	var errs []error
	for _, key := range configKeys {
		if !isSet(key) {
			continue
		}
		var cfg Config
		if err := bind(key, &cfg); err != nil {
			errs = append(errs, fmt.Errorf("bind %s: %w", key, err))
			continue
		}
		return cfg, key, errors.Join(errs...)
	}
	return Config{}, "", errors.Join(errs...)
}
