package extension

import (
	"github.com/xraph/grove"

	"github.com/xraph/abacus"
	"github.com/xraph/abacus/identity"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/plugin"
	"github.com/xraph/abacus/store"
)

// Option configures the abacus Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine. It takes precedence over
// WithGroveDB.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes an abacus.Option through to the underlying engine.
func WithEngineOption(opt abacus.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, abacus.WithPlugin(p))
	}
}

// WithVerifier sets the credential verifier, overriding Config.Auth.
func WithVerifier(v identity.Verifier) Option {
	return func(e *Extension) { e.verifier = v }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCosts sets the per-operation price list.
func WithCosts(c operation.Costs) Option {
	return func(e *Extension) { e.config.Costs = c }
}

// WithMode sets the numeric mode ("decimal" or "int64").
func WithMode(mode string) Option {
	return func(e *Extension) { e.config.Mode = mode }
}

// WithGroveDB sets the grove.DB the store backend is built on. driver names
// the backend (DriverPostgres, DriverSQLite or DriverMongo).
func WithGroveDB(db *grove.DB, driver string) Option {
	return func(e *Extension) {
		e.db = db
		e.config.StoreDriver = driver
	}
}
