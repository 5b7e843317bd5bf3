package validate

import (
	"fmt"
	"sort"
	"strings"
)

// ValidatorConfig declares one validator instance: which strategy to
// build, under what name, at what priority, with what strategy-specific
// settings.
type ValidatorConfig struct {
	Name     string         `json:"name" yaml:"name" toml:"name"`
	Type     string         `json:"type" yaml:"type" toml:"type"`
	Enabled  *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled"`
	Priority string         `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty" toml:"config"`
}

// IsEnabled reports whether the validator should be built. An absent
// enabled flag means enabled.
func (c ValidatorConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// CacheConfig declares the shared result cache.
type CacheConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	PartitionCount int    `json:"partition_count,omitempty" yaml:"partition_count,omitempty" toml:"partition_count"`
	MaxEntries     int    `json:"max_entries,omitempty" yaml:"max_entries,omitempty" toml:"max_entries"`
	TTLSeconds     int    `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty" toml:"ttl_seconds"`
	SweepSchedule  string `json:"sweep_schedule,omitempty" yaml:"sweep_schedule,omitempty" toml:"sweep_schedule"`
}

// RateLimitConfig declares the shared rate limit windows.
type RateLimitConfig struct {
	Enabled           bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty" toml:"requests_per_minute"`
	RequestsPerHour   int  `json:"requests_per_hour,omitempty" yaml:"requests_per_hour,omitempty" toml:"requests_per_hour"`
	BurstSize         int  `json:"burst_size,omitempty" yaml:"burst_size,omitempty" toml:"burst_size"`
}

// Config is the declarative description of a validation deployment:
// global behavior, the validator roster, and the endpoint routing table.
type Config struct {
	Enabled        bool              `json:"enabled" yaml:"enabled" toml:"enabled"`
	Mode           string            `json:"mode" yaml:"mode" toml:"mode"`
	MaxRequestSize int               `json:"max_request_size,omitempty" yaml:"max_request_size,omitempty" toml:"max_request_size"`
	Cache          CacheConfig       `json:"cache,omitempty" yaml:"cache,omitempty" toml:"cache"`
	RateLimit      RateLimitConfig   `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty" toml:"rate_limit"`
	Validators     []ValidatorConfig `json:"validators" yaml:"validators" toml:"validators"`
	Endpoints      map[string][]string `json:"endpoints" yaml:"endpoints" toml:"endpoints"`
}

// DefaultConfig returns the baseline every loaded file is merged over.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Mode:           string(ModeContinue),
		MaxRequestSize: 1 << 20,
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 300,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			BurstSize:         10,
		},
		Endpoints: map[string][]string{},
	}
}

// ValidatorNames lists the configured validator names in declaration
// order.
func (c *Config) ValidatorNames() []string {
	names := make([]string, 0, len(c.Validators))
	for _, v := range c.Validators {
		names = append(names, v.Name)
	}
	return names
}

// Validator returns the config entry for a name.
func (c *Config) Validator(name string) (ValidatorConfig, bool) {
	for _, v := range c.Validators {
		if v.Name == name {
			return v, true
		}
	}
	return ValidatorConfig{}, false
}

func boolPtr(b bool) *bool { return &b }

// MinimalTemplate is the smallest useful deployment: security screening
// and size bounds on API endpoints.
func MinimalTemplate() *Config {
	cfg := DefaultConfig()
	cfg.Mode = string(ModeLenient)
	cfg.Validators = []ValidatorConfig{
		{
			Name: "security", Type: "security", Priority: "critical",
			Config: map[string]any{"enable_xss_protection": true},
		},
		{
			Name: "size", Type: "size", Priority: "high",
			Config: map[string]any{"max_request_size": 1 << 20},
		},
	}
	cfg.Endpoints = map[string][]string{
		"/api/*": {"security", "size"},
	}
	return cfg
}

// StandardTemplate is the recommended production deployment.
func StandardTemplate() *Config {
	cfg := DefaultConfig()
	cfg.Mode = string(ModeStrict)
	cfg.Validators = []ValidatorConfig{
		{
			Name: "security", Type: "security", Priority: "critical",
			Config: map[string]any{
				"enable_xss_protection":          true,
				"enable_sql_injection_detection": true,
			},
		},
		{
			Name: "size", Type: "size", Priority: "high",
			Config: map[string]any{
				"max_request_size":  1 << 20,
				"max_string_length": 10000,
			},
		},
		{
			Name: "format", Type: "format", Priority: "high",
			Config: map[string]any{
				"validate_required_fields": true,
				"strict_field_types":       true,
			},
		},
		{
			Name: "content", Type: "content", Priority: "medium",
			Config: map[string]any{
				"max_content_length":    10000,
				"enable_spam_detection": true,
			},
		},
	}
	cfg.Endpoints = map[string][]string{
		"/api/chat/agent": {"security", "size", "format", "content"},
		"/api/*":          {"security", "size", "format"},
		"/health":         {"size"},
	}
	return cfg
}

// StrictTemplate extends the standard template with rate limiting,
// language and session validation, and tighter limits.
func StrictTemplate() *Config {
	cfg := StandardTemplate()
	cfg.Validators = append(cfg.Validators,
		ValidatorConfig{
			Name: "rate_limit", Type: "rate_limit", Priority: "high",
			Config: map[string]any{
				"requests_per_minute":      30,
				"enable_ip_based_limiting": true,
			},
		},
		ValidatorConfig{
			Name: "language", Type: "language", Priority: "low",
			Config: map[string]any{
				"validate_language_consistency": true,
			},
		},
		ValidatorConfig{
			Name: "session", Type: "session", Priority: "medium",
			Config: map[string]any{
				"validate_session_id_format": true,
				"require_valid_session":      false,
			},
		},
	)
	cfg.Endpoints["/api/chat/agent"] = []string{
		"security", "rate_limit", "size", "format", "content", "language", "session",
	}
	return cfg
}

// MergeConfig deep-merges override into base and returns a new config.
// Non-zero override scalars win and the override's Enabled flags always
// win; validator lists are merged by name (override entries replace base
// entries, new entries append); endpoint lists replace wholesale.
func MergeConfig(base, override *Config) *Config {
	if base == nil {
		base = DefaultConfig()
	}
	merged := *base
	if override == nil {
		merged.Validators = append([]ValidatorConfig{}, base.Validators...)
		merged.Endpoints = copyEndpoints(base.Endpoints)
		return &merged
	}

	merged.Enabled = override.Enabled
	if override.Mode != "" {
		merged.Mode = override.Mode
	}
	if override.MaxRequestSize > 0 {
		merged.MaxRequestSize = override.MaxRequestSize
	}
	merged.Cache = mergeCacheConfig(base.Cache, override.Cache)
	merged.RateLimit = mergeRateLimitConfig(base.RateLimit, override.RateLimit)

	merged.Validators = append([]ValidatorConfig{}, base.Validators...)
	for _, ov := range override.Validators {
		replaced := false
		for i, bv := range merged.Validators {
			if bv.Name == ov.Name {
				merged.Validators[i] = mergeValidatorConfig(bv, ov)
				replaced = true
				break
			}
		}
		if !replaced {
			merged.Validators = append(merged.Validators, ov)
		}
	}

	merged.Endpoints = copyEndpoints(base.Endpoints)
	for endpoint, names := range override.Endpoints {
		merged.Endpoints[endpoint] = append([]string{}, names...)
	}

	return &merged
}

func mergeValidatorConfig(base, override ValidatorConfig) ValidatorConfig {
	merged := base
	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Enabled != nil {
		merged.Enabled = override.Enabled
	}
	if override.Priority != "" {
		merged.Priority = override.Priority
	}
	if len(override.Config) > 0 {
		cfg := make(map[string]any, len(base.Config)+len(override.Config))
		for k, v := range base.Config {
			cfg[k] = v
		}
		for k, v := range override.Config {
			cfg[k] = v
		}
		merged.Config = cfg
	}
	return merged
}

func mergeCacheConfig(base, override CacheConfig) CacheConfig {
	merged := base
	merged.Enabled = override.Enabled
	if override.PartitionCount > 0 {
		merged.PartitionCount = override.PartitionCount
	}
	if override.MaxEntries > 0 {
		merged.MaxEntries = override.MaxEntries
	}
	if override.TTLSeconds > 0 {
		merged.TTLSeconds = override.TTLSeconds
	}
	if override.SweepSchedule != "" {
		merged.SweepSchedule = override.SweepSchedule
	}
	return merged
}

func mergeRateLimitConfig(base, override RateLimitConfig) RateLimitConfig {
	merged := base
	merged.Enabled = override.Enabled
	if override.RequestsPerMinute > 0 {
		merged.RequestsPerMinute = override.RequestsPerMinute
	}
	if override.RequestsPerHour > 0 {
		merged.RequestsPerHour = override.RequestsPerHour
	}
	if override.BurstSize > 0 {
		merged.BurstSize = override.BurstSize
	}
	return merged
}

func copyEndpoints(endpoints map[string][]string) map[string][]string {
	cp := make(map[string][]string, len(endpoints))
	for endpoint, names := range endpoints {
		cp[endpoint] = append([]string{}, names...)
	}
	return cp
}

// ConfigValidation reports structural problems found in a config. Errors
// block use of the config; warnings do not.
type ConfigValidation struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// IsValid reports whether the config can be used.
func (v ConfigValidation) IsValid() bool { return len(v.Errors) == 0 }

// Summary renders a one-line report.
func (v ConfigValidation) Summary() string {
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		return "config valid"
	}
	return fmt.Sprintf("config checked: %d errors, %d warnings", len(v.Errors), len(v.Warnings))
}

var validModes = map[string]bool{
	string(ModeFailFast): true,
	string(ModeContinue): true,
	string(ModeStrict):   true,
	string(ModeLenient):  true,
}

// ValidateConfig checks a config for structural and cross-field problems
// without building anything.
func ValidateConfig(cfg *Config) ConfigValidation {
	var v ConfigValidation
	if cfg == nil {
		v.Errors = append(v.Errors, "config is nil")
		return v
	}

	if cfg.Mode != "" && !validModes[strings.ToLower(cfg.Mode)] {
		v.Errors = append(v.Errors, fmt.Sprintf("invalid mode %q, valid modes: fail_fast, continue, strict, lenient", cfg.Mode))
	}
	if cfg.MaxRequestSize < 0 {
		v.Errors = append(v.Errors, "max_request_size must not be negative")
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.PartitionCount < 0 {
			v.Errors = append(v.Errors, "cache partition_count must not be negative")
		}
		if cfg.Cache.TTLSeconds < 0 {
			v.Errors = append(v.Errors, "cache ttl_seconds must not be negative")
		}
	}

	if cfg.RateLimit.Enabled {
		rl := cfg.RateLimit
		if rl.BurstSize > 0 && rl.RequestsPerMinute > 0 && rl.BurstSize > rl.RequestsPerMinute {
			v.Errors = append(v.Errors, fmt.Sprintf("burst_size (%d) must not exceed requests_per_minute (%d)", rl.BurstSize, rl.RequestsPerMinute))
		}
		if rl.RequestsPerMinute > 0 && rl.RequestsPerHour > 0 && rl.RequestsPerMinute > rl.RequestsPerHour {
			v.Errors = append(v.Errors, fmt.Sprintf("requests_per_minute (%d) must not exceed requests_per_hour (%d)", rl.RequestsPerMinute, rl.RequestsPerHour))
		}
	}

	names := make(map[string]bool, len(cfg.Validators))
	for i, vc := range cfg.Validators {
		if vc.Name == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("validator %d has no name", i))
			continue
		}
		if names[vc.Name] {
			v.Errors = append(v.Errors, fmt.Sprintf("duplicate validator name %q", vc.Name))
		}
		names[vc.Name] = true
		if vc.Type == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("validator %q has no type", vc.Name))
		}
		if vc.Priority != "" {
			switch strings.ToLower(vc.Priority) {
			case "critical", "high", "medium", "low":
			default:
				v.Warnings = append(v.Warnings, fmt.Sprintf("validator %q has unknown priority %q, medium assumed", vc.Name, vc.Priority))
			}
		}
	}

	endpoints := make([]string, 0, len(cfg.Endpoints))
	for endpoint := range cfg.Endpoints {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)
	for _, endpoint := range endpoints {
		for _, name := range cfg.Endpoints[endpoint] {
			if !names[name] {
				v.Warnings = append(v.Warnings, fmt.Sprintf("endpoint %q references undefined validator %q", endpoint, name))
			}
		}
	}

	return v
}

// ConfigFactory builds configs from named templates with overrides.
type ConfigFactory struct {
	templates map[string]func() *Config
}

// NewConfigFactory returns a factory with the minimal, standard and
// strict presets registered.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{
		templates: map[string]func() *Config{
			"minimal":  MinimalTemplate,
			"standard": StandardTemplate,
			"strict":   StrictTemplate,
		},
	}
}

// RegisterTemplate adds or replaces a named template.
func (f *ConfigFactory) RegisterTemplate(name string, template func() *Config) {
	f.templates[name] = template
}

// Templates lists the registered template names, sorted.
func (f *ConfigFactory) Templates() []string {
	names := make([]string, 0, len(f.templates))
	for name := range f.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateFromTemplate builds a config from a template, deep-merged with
// the optional overrides.
func (f *ConfigFactory) CreateFromTemplate(name string, overrides *Config) (*Config, error) {
	template, ok := f.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return MergeConfig(template(), overrides), nil
}
