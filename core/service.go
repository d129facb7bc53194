package core

import (
	"os"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Context is the credential-cache dispatch context: the registry of
// backends plus the default-name resolution state described in
// spec.md's "Context State". One Context is used single-threaded per
// caller; concurrent registration during dispatch is not supported.
type Context struct {
	mu       sync.Mutex
	registry *BackendRegistry
	config   Config
	logger   Logger
	metrics  MetricsRecorder
	clock    func() time.Time
	env      func(string) (string, bool)
	uid      func() uint32

	defaultName    string
	defaultNameSet bool
	envSeen        *string
}

// Setup resolves cfg and builds a Context, the two-phase construction
// the root package's public API wraps.
func Setup(cfg Config, opts ...Option) (*Context, error) {
	return NewContext(append([]Option{WithConfig(cfg)}, opts...)...)
}

// NewContext builds a Context from functional options, defaulting
// unset dependencies the way the root service builder does.
func NewContext(opts ...Option) (*Context, error) {
	b := defaultContextBuilder()
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if err := b.config.Validate(); err != nil {
		return nil, errBadName(err.Error())
	}
	if b.registry == nil {
		b.registry = NewBackendRegistry(b.config.DefaultBackendPrefix, b.config.DefaultBackendPrefix)
	}
	_, logger := glog.Resolve("krb5cc", b.provider, b.logger)
	if b.clock == nil {
		b.clock = func() time.Time { return time.Now().UTC() }
	}
	if b.env == nil {
		b.env = os.LookupEnv
	}
	if b.uid == nil {
		b.uid = func() uint32 { return uint32(os.Getuid()) }
	}
	return &Context{
		registry: b.registry,
		config:   b.config,
		logger:   logger,
		metrics:  b.metrics,
		clock:    b.clock,
		env:      b.env,
		uid:      b.uid,
	}, nil
}

// Register installs backend in the context's registry (§4.2).
func (c *Context) Register(backend Backend, override bool) error {
	if err := c.registry.Register(backend, override); err != nil {
		if c.logger != nil {
			c.logger.Warn("backend registration failed", "prefix", backendPrefixOf(backend), "error", err)
		}
		return err
	}
	return nil
}

// Backends returns every registered backend in registration order.
func (c *Context) Backends() []Backend {
	return c.registry.List()
}

func backendPrefixOf(backend Backend) string {
	if backend == nil {
		return ""
	}
	return backend.Prefix()
}

func (c *Context) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now().UTC()
}
