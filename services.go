// Package services is the public facade over core: it re-exports the
// dispatch Context, its configuration, and the functional options
// callers use to build one.
package services

import "github.com/goliatone/go-krb5cc/core"

type Config = core.Config

type Option = core.Option

type Context = core.Context

type Handle = core.Handle

type Backend = core.Backend

type Principal = core.Principal

type Credential = core.Credential

type MatchField = core.MatchField

var (
	WithLogger         = core.WithLogger
	WithLoggerProvider = core.WithLoggerProvider
	WithMetrics        = core.WithMetrics
	WithConfig         = core.WithConfig
	WithRegistry       = core.WithRegistry
	WithClock          = core.WithClock
	WithEnvLookup      = core.WithEnvLookup
	WithUIDFunc        = core.WithUIDFunc
)

// DefaultConfig returns the baseline configuration: FILE is the
// compile-time default backend.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig builds a validated Config from layered raw input, merged
// over DefaultConfig.
func LoadConfig(raw any) (Config, error) {
	return core.LoadConfig(raw)
}

// Setup resolves cfg and builds a Context ready to register backends
// against.
func Setup(cfg Config, opts ...Option) (*Context, error) {
	return core.Setup(cfg, opts...)
}

// NewContext builds a Context from functional options, defaulting cfg
// to DefaultConfig() when no WithConfig option is given.
func NewContext(opts ...Option) (*Context, error) {
	return core.NewContext(opts...)
}
