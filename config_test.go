package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Enabled || cfg.Mode != "continue" {
		t.Fatalf("defaults = enabled=%v mode=%q", cfg.Enabled, cfg.Mode)
	}
	if cfg.MaxRequestSize != 1<<20 {
		t.Fatalf("max request size = %d", cfg.MaxRequestSize)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTLSeconds != 300 {
		t.Fatalf("cache defaults = %+v", cfg.Cache)
	}
	if cfg.RateLimit.RequestsPerMinute != 60 || cfg.RateLimit.BurstSize != 10 {
		t.Fatalf("rate limit defaults = %+v", cfg.RateLimit)
	}
}

func TestValidatorConfigIsEnabled(t *testing.T) {
	if !(ValidatorConfig{}).IsEnabled() {
		t.Fatal("absent enabled flag must mean enabled")
	}
	if (ValidatorConfig{Enabled: boolPtr(false)}).IsEnabled() {
		t.Fatal("explicit false treated as enabled")
	}
	if !(ValidatorConfig{Enabled: boolPtr(true)}).IsEnabled() {
		t.Fatal("explicit true treated as disabled")
	}
}

func TestTemplatesAreValid(t *testing.T) {
	for name, template := range map[string]func() *Config{
		"minimal":  MinimalTemplate,
		"standard": StandardTemplate,
		"strict":   StrictTemplate,
	} {
		v := ValidateConfig(template())
		if !v.IsValid() {
			t.Errorf("template %s invalid: %v", name, v.Errors)
		}
		if len(v.Warnings) != 0 {
			t.Errorf("template %s has warnings: %v", name, v.Warnings)
		}
	}
}

func TestStrictTemplateExtendsStandard(t *testing.T) {
	cfg := StrictTemplate()
	for _, name := range []string{"security", "size", "format", "content", "rate_limit", "language", "session"} {
		if _, ok := cfg.Validator(name); !ok {
			t.Errorf("strict template missing validator %q", name)
		}
	}
	chain := cfg.Endpoints["/api/chat/agent"]
	if len(chain) != 7 {
		t.Fatalf("agent endpoint chain = %v, want all 7 validators", chain)
	}
}

func TestMergeConfigScalarsAndFlags(t *testing.T) {
	base := StandardTemplate()
	override := &Config{
		Enabled:        true,
		Mode:           "fail_fast",
		MaxRequestSize: 2048,
	}
	merged := MergeConfig(base, override)
	if merged.Mode != "fail_fast" || merged.MaxRequestSize != 2048 {
		t.Fatalf("merged = mode=%q size=%d", merged.Mode, merged.MaxRequestSize)
	}

	// Zero-value override scalars keep the base values.
	keep := MergeConfig(base, &Config{Enabled: true})
	if keep.Mode != base.Mode || keep.MaxRequestSize != base.MaxRequestSize {
		t.Fatalf("zero override changed scalars: %+v", keep)
	}
}

func TestMergeConfigValidatorsByName(t *testing.T) {
	base := StandardTemplate()
	override := &Config{
		Enabled: true,
		Validators: []ValidatorConfig{
			{Name: "security", Config: map[string]any{"enable_sensitive_data_detection": true}},
			{Name: "language", Type: "language", Priority: "low"},
		},
	}
	merged := MergeConfig(base, override)

	sec, ok := merged.Validator("security")
	if !ok {
		t.Fatal("security validator lost in merge")
	}
	if sec.Type != "security" {
		t.Fatalf("merged security type = %q, want base type retained", sec.Type)
	}
	if sec.Config["enable_sensitive_data_detection"] != true {
		t.Fatal("override config key not merged")
	}
	if sec.Config["enable_xss_protection"] != true {
		t.Fatal("base config key dropped by merge")
	}

	if _, ok := merged.Validator("language"); !ok {
		t.Fatal("new validator not appended")
	}
	if len(merged.Validators) != len(base.Validators)+1 {
		t.Fatalf("validator count = %d", len(merged.Validators))
	}
}

func TestMergeConfigEndpointsReplaceWholesale(t *testing.T) {
	base := StandardTemplate()
	override := &Config{
		Enabled:   true,
		Endpoints: map[string][]string{"/api/*": {"security"}},
	}
	merged := MergeConfig(base, override)
	if got := merged.Endpoints["/api/*"]; len(got) != 1 || got[0] != "security" {
		t.Fatalf("endpoint list = %v, want wholesale replacement", got)
	}
	if _, ok := merged.Endpoints["/health"]; !ok {
		t.Fatal("untouched endpoint dropped")
	}
}

func TestMergeConfigDoesNotMutateBase(t *testing.T) {
	base := StandardTemplate()
	baseCount := len(base.Validators)
	MergeConfig(base, &Config{
		Enabled:    true,
		Validators: []ValidatorConfig{{Name: "extra", Type: "security"}},
		Endpoints:  map[string][]string{"/new": {"extra"}},
	})
	if len(base.Validators) != baseCount {
		t.Fatal("merge appended to base validator slice")
	}
	if _, ok := base.Endpoints["/new"]; ok {
		t.Fatal("merge wrote into base endpoint map")
	}
}

func TestValidateConfigErrors(t *testing.T) {
	cfg := &Config{
		Mode: "sometimes",
		RateLimit: RateLimitConfig{
			Enabled:           true,
			BurstSize:         100,
			RequestsPerMinute: 60,
			RequestsPerHour:   30,
		},
		Validators: []ValidatorConfig{
			{Name: "security", Type: "security"},
			{Name: "security", Type: "security"},
			{Name: "", Type: "size"},
			{Name: "ghost"},
		},
	}
	v := ValidateConfig(cfg)
	if v.IsValid() {
		t.Fatal("invalid config accepted")
	}

	joined := strings.Join(v.Errors, "\n")
	for _, want := range []string{
		"invalid mode",
		"burst_size (100) must not exceed requests_per_minute (60)",
		"requests_per_minute (60) must not exceed requests_per_hour (30)",
		"duplicate validator name",
		"has no name",
		`validator "ghost" has no type`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("errors missing %q:\n%s", want, joined)
		}
	}
}

func TestValidateConfigWarnings(t *testing.T) {
	cfg := &Config{
		Mode: "continue",
		Validators: []ValidatorConfig{
			{Name: "security", Type: "security", Priority: "urgent"},
		},
		Endpoints: map[string][]string{
			"/api/*": {"security", "undefined"},
		},
	}
	v := ValidateConfig(cfg)
	if !v.IsValid() {
		t.Fatalf("config with warnings rejected: %v", v.Errors)
	}
	joined := strings.Join(v.Warnings, "\n")
	if !strings.Contains(joined, "unknown priority") {
		t.Errorf("missing priority warning: %s", joined)
	}
	if !strings.Contains(joined, `references undefined validator "undefined"`) {
		t.Errorf("missing endpoint warning: %s", joined)
	}
}

func TestValidateConfigNil(t *testing.T) {
	if v := ValidateConfig(nil); v.IsValid() {
		t.Fatal("nil config accepted")
	}
}

func TestConfigValidationSummary(t *testing.T) {
	if got := (ConfigValidation{}).Summary(); got != "config valid" {
		t.Fatalf("summary = %q", got)
	}
	v := ConfigValidation{Errors: []string{"a"}, Warnings: []string{"b", "c"}}
	if got := v.Summary(); got != "config checked: 1 errors, 2 warnings" {
		t.Fatalf("summary = %q", got)
	}
}

func TestConfigFactoryTemplates(t *testing.T) {
	f := NewConfigFactory()
	names := f.Templates()
	want := []string{"minimal", "standard", "strict"}
	if len(names) != 3 || names[0] != want[0] || names[1] != want[1] || names[2] != want[2] {
		t.Fatalf("templates = %v, want %v", names, want)
	}

	cfg, err := f.CreateFromTemplate("standard", nil)
	if err != nil {
		t.Fatalf("CreateFromTemplate: %v", err)
	}
	if cfg.Mode != "strict" {
		t.Fatalf("standard template mode = %q", cfg.Mode)
	}

	if _, err := f.CreateFromTemplate("nope", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("unknown template error = %v", err)
	}
}

func TestConfigFactoryOverrides(t *testing.T) {
	f := NewConfigFactory()
	cfg, err := f.CreateFromTemplate("minimal", &Config{Enabled: true, Mode: "fail_fast"})
	if err != nil {
		t.Fatalf("CreateFromTemplate: %v", err)
	}
	if cfg.Mode != "fail_fast" {
		t.Fatalf("override mode = %q", cfg.Mode)
	}
}

func TestConfigFactoryRegisterTemplate(t *testing.T) {
	f := NewConfigFactory()
	f.RegisterTemplate("custom", func() *Config {
		cfg := DefaultConfig()
		cfg.Mode = "lenient"
		return cfg
	})
	cfg, err := f.CreateFromTemplate("custom", nil)
	if err != nil || cfg.Mode != "lenient" {
		t.Fatalf("custom template = %+v, %v", cfg, err)
	}
}
