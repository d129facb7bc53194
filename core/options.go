package core

import (
	"strings"
	"time"

	opts "github.com/goliatone/go-options"
)

// Option configures a Context at construction time.
type Option func(*contextBuilder)

type contextBuilder struct {
	logger   Logger
	provider LoggerProvider
	metrics  MetricsRecorder
	config   Config
	registry *BackendRegistry
	clock    func() time.Time
	env      func(string) (string, bool)
	uid      func() uint32
}

// WithLogger supplies a concrete logger, used when no logger provider
// is given (a provider given with WithLoggerProvider takes precedence).
func WithLogger(logger Logger) Option {
	return func(b *contextBuilder) { b.logger = logger }
}

// WithLoggerProvider supplies a logger provider used to resolve a named
// logger; it takes precedence over a concrete logger given with
// WithLogger.
func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *contextBuilder) { b.provider = provider }
}

// WithMetrics supplies a metrics sink; the default is a no-op.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(b *contextBuilder) {
		if recorder != nil {
			b.metrics = recorder
		}
	}
}

// WithConfig supplies the resolved libdefaults-equivalent config.
func WithConfig(cfg Config) Option {
	return func(b *contextBuilder) { b.config = cfg }
}

// WithRegistry supplies a pre-built backend registry; otherwise an
// empty one is created using cfg.DefaultBackendPrefix for both the
// default and file-forcing prefix.
func WithRegistry(registry *BackendRegistry) Option {
	return func(b *contextBuilder) { b.registry = registry }
}

// WithClock overrides the wall clock used for configuration-credential
// timestamps.
func WithClock(clock func() time.Time) Option {
	return func(b *contextBuilder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithEnvLookup overrides environment-variable lookup (defaults to
// os.LookupEnv) for KRB5CCNAME, for deterministic tests.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(b *contextBuilder) {
		if lookup != nil {
			b.env = lookup
		}
	}
}

// WithUIDFunc overrides the %{uid} expansion source (defaults to the
// real OS UID).
func WithUIDFunc(uid func() uint32) Option {
	return func(b *contextBuilder) {
		if uid != nil {
			b.uid = uid
		}
	}
}

func defaultContextBuilder() *contextBuilder {
	return &contextBuilder{
		config:  DefaultConfig(),
		metrics: NopMetricsRecorder{},
	}
}

// ResolveConfig merges defaults, loaded (file/env-sourced), and runtime
// (caller-supplied override) configuration layers using a go-options
// layer stack, the same three-scope shape ("defaults" < "config" <
// "runtime") the root service builder uses to resolve its own Config.
// The precise per-read default-name priority cascade (§4.3) is a
// distinct, order-sensitive algorithm and is implemented directly in
// resolver.go rather than through this generic merge.
func ResolveConfig(defaults, loaded, runtime Config) (Config, error) {
	stack := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), configToMap(defaults), opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 1), configToMap(loaded), opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 2), configToMap(runtime), opts.WithSnapshotID[map[string]any]("runtime")),
	)
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, err
	}
	return configFromMap(merged), nil
}

func configToMap(cfg Config) map[string]any {
	m := map[string]any{}
	if strings.TrimSpace(cfg.DefaultBackendPrefix) != "" {
		m["default_backend_prefix"] = cfg.DefaultBackendPrefix
	}
	if strings.TrimSpace(cfg.DefaultCCName) != "" {
		m["default_cc_name"] = cfg.DefaultCCName
	}
	if strings.TrimSpace(cfg.DefaultCCType) != "" {
		m["default_cc_type"] = cfg.DefaultCCType
	}
	return m
}

func configFromMap(m map[string]any) Config {
	cfg := Config{}
	if v, ok := m["default_backend_prefix"].(string); ok {
		cfg.DefaultBackendPrefix = v
	}
	if v, ok := m["default_cc_name"].(string); ok {
		cfg.DefaultCCName = v
	}
	if v, ok := m["default_cc_type"].(string); ok {
		cfg.DefaultCCType = v
	}
	return cfg
}
