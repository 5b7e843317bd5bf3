package validate

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Signature families checked by the security strategy. Each family is
// independent: one payload may trigger several codes in a single pass.
var (
	xssPatterns = compileAll(
		`(?is)<script[^>]*>.*?</script>`,
		`(?i)<script[^>]*>`,
		`(?i)javascript\s*:`,
		`(?i)\bon\w+\s*=`,
		`(?i)<iframe[^>]*>`,
		`(?i)<object[^>]*>`,
		`(?i)<embed[^>]*>`,
		`(?i)<applet[^>]*>`,
		`(?i)<meta[^>]*>`,
		`(?is)<style[^>]*>.*?</style>`,
		`(?i)style\s*=.*?expression\s*\(`,
		`(?i)data\s*:.*?base64`,
		`(?i)vbscript\s*:`,
	)

	sqlInjectionPatterns = compileAll(
		`(?i)\b(union|select|insert|update|delete|drop|create|alter|exec|execute)\b.*\b(from|where|into|values|set)\b`,
		`(?i)['"]\s*(or|and)\s*['"]\s*=\s*['"]`,
		`(?i)['"]\s*(or|and)\s*\d+\s*=\s*\d+`,
		`(?i)\b(or|and)\s+\d+\s*=\s*\d+`,
		`(?i);\s*(drop|delete|update|insert|create|alter)`,
		`(?i);\s*(select|insert|update|delete)`,
		`(?i)\b(concat|substring|ascii|char|length|database|version|user|system_user)\s*\(`,
		`(?i)\b(sleep|benchmark|waitfor|delay)\s*\(`,
		`(?i)\bunion\b.*\bselect\b`,
		`--\s`,
		`/\*.*?\*/`,
	)

	maliciousScriptPatterns = compileAll(
		`(?i)\beval\s*\(`,
		`(?i)\bsetTimeout\s*\(`,
		`(?i)\bsetInterval\s*\(`,
		`\\u[0-9a-fA-F]{4}`,
		`\\x[0-9a-fA-F]{2}`,
		`&#\d+;`,
		`&#x[0-9a-fA-F]+;`,
		`(?i)document\.write`,
		`(?i)document\.cookie`,
		`(?i)window\.location`,
		`(?i)document\.location`,
	)

	sensitiveDataPatterns = []struct {
		kind string
		re   *regexp.Regexp
	}{
		{"email address", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
		{"credit card number", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
		{"national id number", regexp.MustCompile(`\b\d{17}[\dXx]\b`)},
		{"phone number", regexp.MustCompile(`\b1[3-9]\d{9}\b`)},
		{"IP address", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
		{"social security number", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{"bank card number", regexp.MustCompile(`\b\d{16,19}\b`)},
	}
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// SecurityStrategy pattern-matches payload strings against attack and
// leak signature families. Verdicts are memoizable: the same payload
// always produces the same matches.
type SecurityStrategy struct {
	enableXSS           bool
	enableSQLInjection  bool
	enableScripts       bool
	enableSensitiveData bool
	cacheTTL            time.Duration
}

// NewSecurityStrategy builds the strategy from its free-form config map.
// XSS, SQL injection and malicious-script checks default to enabled;
// sensitive-data detection defaults to disabled.
func NewSecurityStrategy(config map[string]any) *SecurityStrategy {
	return &SecurityStrategy{
		enableXSS:           configBool(config, "enable_xss_protection", true),
		enableSQLInjection:  configBool(config, "enable_sql_injection_detection", true),
		enableScripts:       configBool(config, "enable_script_detection", true),
		enableSensitiveData: configBool(config, "enable_sensitive_data_detection", false),
		cacheTTL:            configDuration(config, "cache_ttl", 5*time.Minute),
	}
}

// StrategyName implements Strategy.
func (s *SecurityStrategy) StrategyName() string { return "security" }

// CacheTTL implements CacheableStrategy.
func (s *SecurityStrategy) CacheTTL() time.Duration { return s.cacheTTL }

// Execute implements Strategy. All enabled families are checked against
// the concatenated string content of the payload; the first match of each
// family is reported.
func (s *SecurityStrategy) Execute(_ context.Context, data map[string]any, _ map[string]any) (*Result, error) {
	result := NewResult()

	content := extractStrings(data)
	if content == "" {
		return result, nil
	}

	if s.enableXSS {
		if match := firstMatch(xssPatterns, content); match != "" {
			result.AddError(NewXSSError(truncate(match, 100), s.StrategyName()))
		}
	}
	if s.enableSQLInjection {
		if match := firstMatch(sqlInjectionPatterns, content); match != "" {
			result.AddError(NewSQLInjectionError(truncate(match, 100), s.StrategyName()))
		}
	}
	if s.enableScripts {
		if match := firstMatch(maliciousScriptPatterns, content); match != "" {
			result.AddError(Error{
				Code:       "MALICIOUS_SCRIPT_DETECTED",
				Message:    "potential malicious script code detected",
				Severity:   SeverityHigh,
				Value:      truncate(match, 100),
				Validator:  s.StrategyName(),
				Suggestion: "remove JavaScript function calls and DOM manipulation from the payload",
			})
		}
	}
	if s.enableSensitiveData {
		var kinds []string
		for _, p := range sensitiveDataPatterns {
			if p.re.MatchString(content) {
				kinds = append(kinds, p.kind)
			}
		}
		if len(kinds) > 0 {
			result.AddWarning(Error{
				Code:       "SENSITIVE_DATA_DETECTED",
				Message:    "possible sensitive data detected: " + strings.Join(kinds, ", "),
				Severity:   SeverityHigh,
				Validator:  s.StrategyName(),
				Suggestion: "avoid including personal data in requests, or redact it first",
				Metadata:   map[string]any{"detected_types": kinds},
			})
		}
	}

	return result, nil
}

func firstMatch(patterns []*regexp.Regexp, content string) string {
	for _, p := range patterns {
		if m := p.FindString(content); m != "" {
			return m
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// extractStrings flattens every string value in the payload, depth-first,
// into one space-joined blob for signature matching.
func extractStrings(data map[string]any) string {
	var parts []string
	collectStrings(data, &parts)
	return strings.Join(parts, " ")
}

func collectStrings(value any, parts *[]string) {
	switch v := value.(type) {
	case string:
		*parts = append(*parts, v)
	case map[string]any:
		// Deterministic order is not required for matching.
		for _, child := range v {
			collectStrings(child, parts)
		}
	case []any:
		for _, child := range v {
			collectStrings(child, parts)
		}
	}
}
