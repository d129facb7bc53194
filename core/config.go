package core

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
)

// Config holds the libdefaults-equivalent settings the default-name
// priority cascade consults (§4.3): the compile-time default backend
// prefix, an optional explicit default cache name template, and an
// optional default backend type to dispatch to when no name is
// configured.
type Config struct {
	DefaultBackendPrefix string `koanf:"default_backend_prefix" mapstructure:"default_backend_prefix"`
	DefaultCCName        string `koanf:"default_cc_name" mapstructure:"default_cc_name"`
	DefaultCCType        string `koanf:"default_cc_type" mapstructure:"default_cc_type"`
}

// DefaultConfig returns the baseline configuration: FILE is the
// compile-time default backend, matching the original implementation.
func DefaultConfig() Config {
	return Config{
		DefaultBackendPrefix: "FILE",
	}
}

// Validate enforces the invariants the resolver depends on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DefaultBackendPrefix) == "" {
		return fmt.Errorf("core: default_backend_prefix is required")
	}
	if strings.Contains(c.DefaultBackendPrefix, ":") {
		return fmt.Errorf("core: default_backend_prefix must not contain ':'")
	}
	return nil
}

// LoadConfig builds a validated Config from raw layered configuration
// input (a map, a struct, anything cfgx.Build accepts), merging it over
// DefaultConfig.
func LoadConfig(raw any) (Config, error) {
	return cfgx.Build[Config](raw, cfgx.WithDefaults(DefaultConfig()), cfgx.WithValidator[Config](Config.Validate))
}
