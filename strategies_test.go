package validate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorCodesOf(errs []Error) []string {
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	return codes
}

func TestSecurityStrategyDetectsXSS(t *testing.T) {
	s := NewSecurityStrategy(nil)
	payload := map[string]any{"message": `hello <script>alert(1)</script>`}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	require.False(t, result.IsValid())
	assert.Contains(t, errorCodesOf(result.Errors), "XSS_DETECTED")
	assert.True(t, result.HasCriticalErrors())
}

func TestSecurityStrategyDetectsSQLInjection(t *testing.T) {
	s := NewSecurityStrategy(nil)
	payload := map[string]any{"query": "1; DROP TABLE users"}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Errors), "SQL_INJECTION_DETECTED")
}

func TestSecurityStrategyDetectsMaliciousScript(t *testing.T) {
	s := NewSecurityStrategy(nil)
	payload := map[string]any{"code": "eval(atob(payload))"}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Errors), "MALICIOUS_SCRIPT_DETECTED")
}

func TestSecurityStrategySensitiveDataOptIn(t *testing.T) {
	payload := map[string]any{"contact": "reach me at alice@example.com"}

	off := NewSecurityStrategy(nil)
	result, err := off.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	on := NewSecurityStrategy(map[string]any{"enable_sensitive_data_detection": true})
	result, err = on.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "SENSITIVE_DATA_DETECTED", result.Warnings[0].Code)
	assert.Contains(t, result.Warnings[0].Metadata["detected_types"], "email address")
}

func TestSecurityStrategyScansNestedStructures(t *testing.T) {
	s := NewSecurityStrategy(nil)
	payload := map[string]any{
		"dialogue_history": []any{
			map[string]any{"content": "javascript:alert(1)"},
		},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Errors), "XSS_DETECTED")
}

func TestSecurityStrategyCleanPayloadPasses(t *testing.T) {
	s := NewSecurityStrategy(map[string]any{"enable_sensitive_data_detection": true})
	payload := map[string]any{"message": "what is the weather like today"}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.True(t, result.IsValid())
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestSizeStrategyRequestSizeLimit(t *testing.T) {
	s := NewSizeStrategy(map[string]any{"max_request_size": 64})
	payload := map[string]any{"message": strings.Repeat("x", 200)}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	codes := errorCodesOf(result.Errors)
	assert.Contains(t, codes, "SIZE_LIMIT_EXCEEDED")
}

func TestSizeStrategyStringLengthLimit(t *testing.T) {
	s := NewSizeStrategy(map[string]any{"max_string_length": 10})
	payload := map[string]any{"note": strings.Repeat("a", 11)}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	codes := errorCodesOf(result.Errors)
	require.Contains(t, codes, "STRING_LENGTH_EXCEEDED")
	for _, e := range result.Errors {
		if e.Code == "STRING_LENGTH_EXCEEDED" {
			assert.Equal(t, "note", e.Field)
		}
	}
}

func TestSizeStrategyDepthLimit(t *testing.T) {
	s := NewSizeStrategy(map[string]any{"max_json_depth": 2})
	payload := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": map[string]any{
					"d": "deep",
				},
			},
		},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Errors), "JSON_DEPTH_EXCEEDED")
}

func TestSizeStrategyArrayLengthLimit(t *testing.T) {
	s := NewSizeStrategy(map[string]any{"max_array_length": 3})
	payload := map[string]any{"items": []any{1, 2, 3, 4}}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Errors), "ARRAY_LENGTH_EXCEEDED")
}

func TestSizeStrategyDialogueHistoryWarning(t *testing.T) {
	s := NewSizeStrategy(map[string]any{"max_dialogue_history_length": 2})
	history := []any{
		map[string]any{"content": "one"},
		map[string]any{"content": "two"},
		map[string]any{"content": "three"},
	}
	payload := map[string]any{"dialogue_history": history}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.True(t, result.IsValid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "DIALOGUE_HISTORY_TOO_LONG", result.Warnings[0].Code)
}

func TestFormatStrategyMissingRequiredFields(t *testing.T) {
	s := NewFormatStrategy(nil)
	payload := map[string]any{"session_id": "abcd1234"}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	e := result.Errors[0]
	assert.Equal(t, "MISSING_REQUIRED_FIELDS", e.Code)
	assert.Equal(t, []string{"dialogue_history", "session_metadata", "tool_execution_results"},
		e.Metadata["missing_fields"])
}

func TestFormatStrategyTypeMismatch(t *testing.T) {
	s := NewFormatStrategy(nil)
	payload := map[string]any{
		"session_id":             12345,
		"dialogue_history":       []any{},
		"tool_execution_results": map[string]any{},
		"session_metadata":       map[string]any{},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "INVALID_DATA_TYPE", result.Errors[0].Code)
	assert.Equal(t, "session_id", result.Errors[0].Field)
}

func TestFormatStrategyMessageShape(t *testing.T) {
	s := NewFormatStrategy(nil)
	payload := map[string]any{
		"session_id": "abcd1234",
		"dialogue_history": []any{
			map[string]any{"role": "user", "content": "hi", "timestamp": "2026-01-02T15:04:05Z"},
			map[string]any{"role": "wizard", "content": "hi", "timestamp": "2026-01-02T15:04:05Z"},
			map[string]any{"role": "user", "content": "hi", "timestamp": "yesterday"},
			"not a message",
		},
		"tool_execution_results": map[string]any{},
		"session_metadata":       map[string]any{},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	codes := errorCodesOf(result.Errors)
	assert.Contains(t, codes, "INVALID_MESSAGE_ROLE")
	assert.Contains(t, codes, "INVALID_TIMESTAMP_FORMAT")
	assert.Contains(t, codes, "INVALID_MESSAGE_FORMAT")
}

func TestFormatStrategyCustomRequiredFields(t *testing.T) {
	s := NewFormatStrategy(map[string]any{"required_fields": []any{"query"}})
	result, err := s.Execute(context.Background(), map[string]any{"query": "hello"}, nil)
	require.NoError(t, err)
	assert.True(t, result.IsValid())
}

func TestContentStrategyEmptyContent(t *testing.T) {
	s := NewContentStrategy(nil)
	payload := map[string]any{
		"dialogue_history": []any{
			map[string]any{"content": "   "},
		},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Errors), "EMPTY_MESSAGE_CONTENT")
}

func TestContentStrategyLengthBound(t *testing.T) {
	s := NewContentStrategy(map[string]any{"max_message_length": 10})
	payload := map[string]any{"content": strings.Repeat("a b ", 10)}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Errors), "MESSAGE_CONTENT_TOO_LONG")
}

func TestContentStrategyRepetitionWarning(t *testing.T) {
	s := NewContentStrategy(map[string]any{"enable_spam_detection": false})
	payload := map[string]any{"content": strings.TrimSpace(strings.Repeat("spam ", 30))}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	codes := errorCodesOf(result.Warnings)
	assert.Contains(t, codes, "HIGHLY_REPETITIVE_CONTENT")
}

func TestContentStrategySpamSignature(t *testing.T) {
	s := NewContentStrategy(nil)
	payload := map[string]any{"content": "buy now " + strings.Repeat("!", 25)}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Warnings), "SPAM_CONTENT_DETECTED")
}

func TestContentStrategyDuplicateMessages(t *testing.T) {
	s := NewContentStrategy(nil)
	payload := map[string]any{
		"dialogue_history": []any{
			map[string]any{"content": "hello there"},
			map[string]any{"content": "hello there"},
		},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Contains(t, errorCodesOf(result.Warnings), "DUPLICATE_MESSAGES_DETECTED")
}

func TestLanguageStrategyUnsupportedLanguage(t *testing.T) {
	s := NewLanguageStrategy(nil)
	payload := map[string]any{
		"session_metadata": map[string]any{"language": "de"},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "UNSUPPORTED_LANGUAGE", result.Errors[0].Code)
}

func TestLanguageStrategyInvalidCodeFormat(t *testing.T) {
	s := NewLanguageStrategy(nil)
	payload := map[string]any{
		"session_metadata": map[string]any{"language": "x"},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "INVALID_LANGUAGE_CODE_FORMAT", result.Errors[0].Code)
}

func TestLanguageStrategyConsistencyWarning(t *testing.T) {
	s := NewLanguageStrategy(nil)
	payload := map[string]any{
		"session_metadata": map[string]any{"language": "en"},
		"dialogue_history": []any{
			map[string]any{"content": "你好，今天天气怎么样"},
		},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.True(t, result.IsValid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "INCONSISTENT_LANGUAGES", result.Warnings[0].Code)
	assert.Equal(t, "zh", result.Warnings[0].Metadata["detected_language"])
}

func TestLanguageStrategyConsistencyRequired(t *testing.T) {
	s := NewLanguageStrategy(map[string]any{"require_consistency": true})
	payload := map[string]any{
		"session_metadata": map[string]any{"language": "en"},
		"dialogue_history": []any{
			map[string]any{"content": "Привет, как дела"},
		},
	}

	result, err := s.Execute(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "INCONSISTENT_LANGUAGES", result.Errors[0].Code)
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"hello world":    "en",
		"你好世界":           "zh",
		"こんにちは":          "ja",
		"안녕하세요":          "ko",
		"مرحبا بالعالم":  "ar",
		"привет мир":     "ru",
		"日本語のひらがなと漢字が混在": "ja",
	}
	for text, want := range cases {
		assert.Equal(t, want, DetectLanguage(text), "text %q", text)
	}
}
