package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/GoCodeAlone/validate/cache"
)

// Default priority per builtin strategy type. A validator config entry
// with an explicit priority overrides these.
var builtinPriorities = map[string]Priority{
	"security":   PriorityCritical,
	"rate_limit": PriorityHigh,
	"size":       PriorityHigh,
	"format":     PriorityHigh,
	"content":    PriorityMedium,
	"language":   PriorityLow,
	"session":    PriorityMedium,
}

// ValidatorFactory builds validators from declarative config entries. It
// owns a Registry seeded with the builtin strategy types; custom types
// can be registered on top.
type ValidatorFactory struct {
	registry *Registry
	cache    *cache.Manager
	logger   Logger
}

// NewValidatorFactory builds a factory with the builtin validators
// registered. The cache manager is shared by every cacheable validator
// the factory builds; it may be nil to disable memoization.
func NewValidatorFactory(cacheManager *cache.Manager, logger Logger) *ValidatorFactory {
	if logger == nil {
		logger = NoopLogger{}
	}
	f := &ValidatorFactory{
		registry: NewRegistry(),
		cache:    cacheManager,
		logger:   logger,
	}
	f.registerBuiltins()
	return f
}

// Registry exposes the underlying registry for custom registrations.
func (f *ValidatorFactory) Registry() *Registry { return f.registry }

// Available lists the registered validator types, sorted.
func (f *ValidatorFactory) Available() []string { return f.registry.List() }

// Has reports whether a validator type is registered.
func (f *ValidatorFactory) Has(name string) bool { return f.registry.Has(name) }

func (f *ValidatorFactory) registerBuiltins() {
	builtins := map[string]func(map[string]any) Strategy{
		"security":   func(cfg map[string]any) Strategy { return NewSecurityStrategy(cfg) },
		"size":       func(cfg map[string]any) Strategy { return NewSizeStrategy(cfg) },
		"format":     func(cfg map[string]any) Strategy { return NewFormatStrategy(cfg) },
		"content":    func(cfg map[string]any) Strategy { return NewContentStrategy(cfg) },
		"language":   func(cfg map[string]any) Strategy { return NewLanguageStrategy(cfg) },
		"rate_limit": func(cfg map[string]any) Strategy { return NewRateLimitStrategy(cfg) },
		"session":    func(cfg map[string]any) Strategy { return NewSessionStrategy(cfg) },
	}
	for name, build := range builtins {
		name, build := name, build
		ctor := func(cfg map[string]any) (Validator, error) {
			priority := builtinPriorities[name]
			if p := configString(cfg, "priority", ""); p != "" {
				priority = ParsePriority(p)
			}
			instance := configString(cfg, "name", name)
			return NewStrategyValidator(instance, priority, build(cfg), cfg, f.cache)
		}
		// Registration of builtins cannot collide.
		_ = f.registry.Register(name, ctor)
	}
}

// Create builds a validator of the named type with the given settings.
func (f *ValidatorFactory) Create(name string, cfg map[string]any) (Validator, error) {
	return f.registry.Create(name, cfg)
}

// CreateFromConfig builds a validator from one declarative entry. A
// disabled entry yields (nil, nil).
func (f *ValidatorFactory) CreateFromConfig(vc ValidatorConfig) (Validator, error) {
	if !vc.IsEnabled() {
		return nil, nil
	}
	typ := vc.Type
	if typ == "" {
		typ = vc.Name
	}

	cfg := make(map[string]any, len(vc.Config)+1)
	for k, v := range vc.Config {
		cfg[k] = v
	}
	if vc.Priority != "" {
		cfg["priority"] = vc.Priority
	}
	if vc.Name != "" {
		cfg["name"] = vc.Name
	}

	validator, err := f.registry.Create(typ, cfg)
	if err != nil {
		return nil, fmt.Errorf("building validator %q: %w", vc.Name, err)
	}
	return validator, nil
}

type endpointPattern struct {
	raw        string
	re         *regexp.Regexp
	validators []string
}

// EndpointMatcher routes endpoint paths to validator name lists. Exact
// entries always win; among patterns the longest (most specific) pattern
// wins. Patterns support * (any run) and ? (any single character).
type EndpointMatcher struct {
	exact    map[string][]string
	patterns []endpointPattern
}

// NewEndpointMatcher builds an empty matcher.
func NewEndpointMatcher() *EndpointMatcher {
	return &EndpointMatcher{exact: make(map[string][]string)}
}

// Add registers an endpoint. Paths containing * or ? become patterns,
// everything else is an exact match.
func (m *EndpointMatcher) Add(endpoint string, validators []string) error {
	names := append([]string{}, validators...)
	if !strings.ContainsAny(endpoint, "*?") {
		m.exact[endpoint] = names
		return nil
	}

	re, err := compileEndpointPattern(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint pattern %q: %w", endpoint, err)
	}
	m.patterns = append(m.patterns, endpointPattern{raw: endpoint, re: re, validators: names})
	// Longest pattern first so the most specific one wins.
	sort.SliceStable(m.patterns, func(i, j int) bool {
		return len(m.patterns[i].raw) > len(m.patterns[j].raw)
	})
	return nil
}

func compileEndpointPattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// Match returns the validator list for an endpoint, or ok=false when
// nothing is configured for it.
func (m *EndpointMatcher) Match(endpoint string) ([]string, bool) {
	if names, ok := m.exact[endpoint]; ok {
		return names, true
	}
	for _, p := range m.patterns {
		if p.re.MatchString(endpoint) {
			return p.validators, true
		}
	}
	return nil, false
}

// Endpoints lists all configured endpoints and patterns.
func (m *EndpointMatcher) Endpoints() []string {
	endpoints := make([]string, 0, len(m.exact)+len(m.patterns))
	for endpoint := range m.exact {
		endpoints = append(endpoints, endpoint)
	}
	for _, p := range m.patterns {
		endpoints = append(endpoints, p.raw)
	}
	sort.Strings(endpoints)
	return endpoints
}

// ChainFactory builds validation chains per endpoint from a declarative
// config, caching built chains until the config is reloaded.
type ChainFactory struct {
	validators *ValidatorFactory
	logger     Logger

	mu      sync.Mutex
	config  *Config
	matcher *EndpointMatcher
	chains  map[string]*Chain
}

// NewChainFactory builds a chain factory for the given config. The config
// is validated; validation errors reject it.
func NewChainFactory(cfg *Config, validators *ValidatorFactory, logger Logger) (*ChainFactory, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if logger == nil {
		logger = NoopLogger{}
	}
	f := &ChainFactory{
		validators: validators,
		logger:     logger,
		chains:     make(map[string]*Chain),
	}
	if err := f.Reload(cfg); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload replaces the config, rebuilds the endpoint routing table and
// drops every cached chain.
func (f *ChainFactory) Reload(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}
	if v := ValidateConfig(cfg); !v.IsValid() {
		return fmt.Errorf("invalid validation config: %s", strings.Join(v.Errors, "; "))
	}

	matcher := NewEndpointMatcher()
	for endpoint, names := range cfg.Endpoints {
		if err := matcher.Add(endpoint, names); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = cfg
	f.matcher = matcher
	f.chains = make(map[string]*Chain)
	f.logger.Info("validation config loaded",
		"validators", len(cfg.Validators),
		"endpoints", len(cfg.Endpoints),
		"mode", cfg.Mode)
	return nil
}

// InvalidateCache drops every cached chain without touching the config.
func (f *ChainFactory) InvalidateCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chains = make(map[string]*Chain)
}

// DefaultEndpointKey is the reserved routing-table key whose validator
// list serves endpoints no exact entry or pattern matches.
const DefaultEndpointKey = "default"

// ChainForEndpoint returns the chain configured for an endpoint, building
// and caching it on first use. Endpoints with no matching entry fall back
// to the "default" routing entry when one is configured, otherwise
// ErrEndpointNotConfigured is returned.
func (f *ChainFactory) ChainForEndpoint(endpoint string) (*Chain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if chain, ok := f.chains[endpoint]; ok {
		return chain, nil
	}

	names, ok := f.matcher.Match(endpoint)
	if !ok {
		fallback, exists := f.config.Endpoints[DefaultEndpointKey]
		if !exists {
			return nil, fmt.Errorf("%w: %q", ErrEndpointNotConfigured, endpoint)
		}
		names = fallback
	}

	chain, err := f.buildChainLocked(endpoint, names)
	if err != nil {
		return nil, err
	}
	f.chains[endpoint] = chain
	return chain, nil
}

// ChainFromNames builds an uncached chain from an explicit validator
// name list, using the config entry for each name when one exists.
func (f *ChainFactory) ChainFromNames(name string, validatorNames []string) (*Chain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buildChainLocked(name, validatorNames)
}

func (f *ChainFactory) buildChainLocked(name string, validatorNames []string) (*Chain, error) {
	chain := NewChain(name,
		WithMode(ParseMode(f.config.Mode)),
		WithLogger(f.logger),
	)

	for _, validatorName := range validatorNames {
		vc, ok := f.config.Validator(validatorName)
		if !ok {
			vc = ValidatorConfig{Name: validatorName, Type: validatorName}
		}
		validator, err := f.validators.CreateFromConfig(vc)
		if err != nil {
			return nil, err
		}
		if validator == nil {
			continue
		}
		chain.AddValidator(validator)
	}

	if chain.ValidatorCount() == 0 {
		return nil, fmt.Errorf("%w: chain %q", ErrChainEmpty, name)
	}
	return chain, nil
}

// Config returns the currently loaded config.
func (f *ChainFactory) Config() *Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// CachedChains reports how many chains are currently cached.
func (f *ChainFactory) CachedChains() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chains)
}
