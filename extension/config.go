package extension

import (
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/randstr"
)

// Store driver names accepted by Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the abacus extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.abacus" or "abacus" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start. The catalog is still
	// seeded.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Mode selects the numeric mode: "decimal" (default) or "int64".
	Mode string `json:"mode" mapstructure:"mode" yaml:"mode"`

	// Costs is the per-operation price list seeded into the catalog.
	// Zero-valued entries fall back to the defaults.
	Costs operation.Costs `json:"costs" mapstructure:"costs" yaml:"costs"`

	// DisableRefund keeps the debit when the computation or the record
	// append fails after charging.
	DisableRefund bool `json:"disable_refund" mapstructure:"disable_refund" yaml:"disable_refund"`

	// RandomStrings configures the random string service client.
	RandomStrings randstr.Config `json:"random_strings" mapstructure:"random_strings" yaml:"random_strings"`

	// Auth configures credential verification.
	Auth AuthConfig `json:"auth" mapstructure:"auth" yaml:"auth"`

	// StoreDriver selects the backend built around the grove.DB passed with
	// WithGroveDB: "postgres", "sqlite" or "mongo". Without a grove.DB the
	// memory store is used.
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// AuthConfig configures the credential verifier.
type AuthConfig struct {
	// Secret is the shared HMAC secret tokens are signed with.
	Secret string `json:"secret" mapstructure:"secret" yaml:"secret"`

	// Issuer and Audience, when set, must match the token claims.
	Issuer   string `json:"issuer" mapstructure:"issuer" yaml:"issuer"`
	Audience string `json:"audience" mapstructure:"audience" yaml:"audience"`

	// Unverified skips signature checks. Only for deployments behind a
	// gateway that has already authenticated the caller.
	Unverified bool `json:"unverified" mapstructure:"unverified" yaml:"unverified"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:          "decimal",
		Costs:         operation.DefaultCosts(),
		RandomStrings: randstr.DefaultConfig(),
		StoreDriver:   DriverPostgres,
	}
}
