package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Script-range detectors for languages whose writing systems are
// unambiguous. Latin-script languages cannot be told apart this way and
// fall back to "en".
var languageScripts = []struct {
	code string
	re   *regexp.Regexp
}{
	{"zh", regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)},
	{"ja", regexp.MustCompile(`[\x{3040}-\x{309f}\x{30a0}-\x{30ff}]`)},
	{"ko", regexp.MustCompile(`[\x{ac00}-\x{d7af}]`)},
	{"ar", regexp.MustCompile(`[\x{0600}-\x{06ff}]`)},
	{"ru", regexp.MustCompile(`[\x{0400}-\x{04ff}]`)},
}

// DetectLanguage guesses the dominant language of text from its script
// ranges. Japanese kana wins over the CJK ideograph range shared with
// Chinese. Returns "en" when no non-Latin script is found.
func DetectLanguage(text string) string {
	if languageScripts[1].re.MatchString(text) {
		return "ja"
	}
	for _, s := range languageScripts {
		if s.re.MatchString(text) {
			return s.code
		}
	}
	return "en"
}

// LanguageStrategy validates the declared request language against a
// supported-language allowlist and checks consistency between the declared
// and detected language of the dialogue content.
type LanguageStrategy struct {
	supported          []string
	requireConsistency bool
}

// NewLanguageStrategy builds the strategy from its config map. The default
// allowlist is en, zh, es, fr, ja.
func NewLanguageStrategy(config map[string]any) *LanguageStrategy {
	return &LanguageStrategy{
		supported:          configStrings(config, "supported_languages", []string{"en", "zh", "es", "fr", "ja"}),
		requireConsistency: configBool(config, "require_consistency", false),
	}
}

// StrategyName implements Strategy.
func (s *LanguageStrategy) StrategyName() string { return "language" }

// Execute implements Strategy.
func (s *LanguageStrategy) Execute(_ context.Context, data map[string]any, _ map[string]any) (*Result, error) {
	result := NewResult()

	declared := s.declaredLanguage(data, result)
	if declared == "" {
		return result, nil
	}

	if detected := s.detectFromHistory(data); detected != "" && detected != declared {
		mismatch := Error{
			Code:       "INCONSISTENT_LANGUAGES",
			Message:    fmt.Sprintf("declared language %q does not match detected language %q", declared, detected),
			Severity:   SeverityMedium,
			Field:      "session_metadata.language",
			Value:      declared,
			Validator:  s.StrategyName(),
			Suggestion: fmt.Sprintf("set the declared language to %q or translate the content", detected),
			Metadata:   map[string]any{"detected_language": detected},
		}
		if s.requireConsistency {
			result.AddError(mismatch)
		} else {
			result.AddWarning(mismatch)
		}
	}

	return result, nil
}

// declaredLanguage validates and returns the language declared in session
// metadata, or "" when none is declared or it is invalid.
func (s *LanguageStrategy) declaredLanguage(data map[string]any, result *Result) string {
	metadata, ok := data["session_metadata"].(map[string]any)
	if !ok {
		return ""
	}
	raw, present := metadata["language"]
	if !present {
		return ""
	}

	lang, ok := raw.(string)
	if !ok {
		result.AddError(NewFormatError("session_metadata.language", "string", fmt.Sprintf("%T", raw), s.StrategyName()))
		return ""
	}
	lang = strings.ToLower(strings.TrimSpace(lang))

	if len(lang) < 2 || len(lang) > 5 {
		result.AddError(Error{
			Code:       "INVALID_LANGUAGE_CODE_FORMAT",
			Message:    fmt.Sprintf("invalid language code %q", lang),
			Severity:   SeverityMedium,
			Field:      "session_metadata.language",
			Value:      lang,
			Validator:  s.StrategyName(),
			Suggestion: "use a 2-5 character language code such as en, zh, es, fr, ja",
		})
		return ""
	}

	for _, supported := range s.supported {
		if lang == supported {
			return lang
		}
	}
	result.AddError(Error{
		Code:       "UNSUPPORTED_LANGUAGE",
		Message:    fmt.Sprintf("language %q is not supported", lang),
		Severity:   SeverityMedium,
		Field:      "session_metadata.language",
		Value:      lang,
		Validator:  s.StrategyName(),
		Suggestion: "use one of the supported languages: " + strings.Join(s.supported, ", "),
	})
	return ""
}

func (s *LanguageStrategy) detectFromHistory(data map[string]any) string {
	history, ok := data["dialogue_history"].([]any)
	if !ok || len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, raw := range history {
		if msg, ok := raw.(map[string]any); ok {
			if content, ok := msg["content"].(string); ok {
				sb.WriteString(content)
				sb.WriteByte(' ')
			}
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return ""
	}
	return DetectLanguage(sb.String())
}
