package validate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var iso8601Pattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?([+-]\d{2}:\d{2}|Z)?$`)

var validMessageRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"tool":      true,
}

// fieldKind names an expected payload field type in config and messages.
type fieldKind string

const (
	kindString fieldKind = "string"
	kindList   fieldKind = "list"
	kindObject fieldKind = "object"
)

func matchesKind(value any, kind fieldKind) bool {
	switch kind {
	case kindString:
		_, ok := value.(string)
		return ok
	case kindList:
		_, ok := value.([]any)
		return ok
	case kindObject:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}

// FormatStrategy validates presence of required top-level fields, per-field
// types, and the shape of nested message records (role/content/timestamp
// with an ISO-8601 timestamp).
type FormatStrategy struct {
	requireFields    bool
	strictFieldTypes bool
	requiredFields   map[string]fieldKind
}

// NewFormatStrategy builds the strategy from its config map. The default
// required fields mirror the request contract consumed by the flow engine:
// session_id, dialogue_history, tool_execution_results, session_metadata.
func NewFormatStrategy(config map[string]any) *FormatStrategy {
	required := map[string]fieldKind{
		"session_id":             kindString,
		"dialogue_history":       kindList,
		"tool_execution_results": kindObject,
		"session_metadata":       kindObject,
	}
	if names := configStrings(config, "required_fields", nil); names != nil {
		required = make(map[string]fieldKind, len(names))
		for _, name := range names {
			required[name] = kindString
		}
	}
	return &FormatStrategy{
		requireFields:    configBool(config, "validate_required_fields", true),
		strictFieldTypes: configBool(config, "strict_field_types", true),
		requiredFields:   required,
	}
}

// StrategyName implements Strategy.
func (s *FormatStrategy) StrategyName() string { return "format" }

// Execute implements Strategy.
func (s *FormatStrategy) Execute(_ context.Context, data map[string]any, _ map[string]any) (*Result, error) {
	result := NewResult()

	if s.requireFields {
		s.checkRequiredFields(data, result)
	}
	if s.strictFieldTypes {
		s.checkFieldTypes(data, result)
	}
	if history, ok := data["dialogue_history"].([]any); ok {
		s.checkMessages(history, result)
	}

	return result, nil
}

func (s *FormatStrategy) checkRequiredFields(data map[string]any, result *Result) {
	var missing []string
	for name := range s.requiredFields {
		if _, ok := data[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}
	sort.Strings(missing)
	all := make([]string, 0, len(s.requiredFields))
	for name := range s.requiredFields {
		all = append(all, name)
	}
	sort.Strings(all)
	result.AddError(Error{
		Code:       "MISSING_REQUIRED_FIELDS",
		Message:    "missing required fields: " + strings.Join(missing, ", "),
		Severity:   SeverityHigh,
		Validator:  s.StrategyName(),
		Suggestion: "ensure the request includes all required fields: " + strings.Join(all, ", "),
		Metadata:   map[string]any{"missing_fields": missing},
	})
}

func (s *FormatStrategy) checkFieldTypes(data map[string]any, result *Result) {
	names := make([]string, 0, len(s.requiredFields))
	for name := range s.requiredFields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value, ok := data[name]
		if !ok {
			continue
		}
		if kind := s.requiredFields[name]; !matchesKind(value, kind) {
			result.AddError(Error{
				Code:       "INVALID_DATA_TYPE",
				Message:    fmt.Sprintf("field %q must be a %s", name, kind),
				Severity:   SeverityHigh,
				Field:      name,
				Value:      fmt.Sprintf("%T", value),
				Validator:  s.StrategyName(),
				Suggestion: fmt.Sprintf("supply %q as a %s", name, kind),
			})
		}
	}
}

// checkMessages validates each dialogue entry as a message record.
func (s *FormatStrategy) checkMessages(history []any, result *Result) {
	for i, raw := range history {
		msg, ok := raw.(map[string]any)
		if !ok {
			result.AddError(Error{
				Code:       "INVALID_MESSAGE_FORMAT",
				Message:    fmt.Sprintf("dialogue_history[%d] is not a message object", i),
				Severity:   SeverityHigh,
				Field:      fmt.Sprintf("dialogue_history[%d]", i),
				Validator:  s.StrategyName(),
				Suggestion: "each dialogue entry must be an object with role, content and timestamp",
			})
			continue
		}

		for _, field := range []string{"role", "content", "timestamp"} {
			if _, present := msg[field]; !present {
				result.AddError(Error{
					Code:      "INVALID_MESSAGE_FORMAT",
					Message:   fmt.Sprintf("dialogue_history[%d] is missing field %q", i, field),
					Severity:  SeverityHigh,
					Field:     fmt.Sprintf("dialogue_history[%d].%s", i, field),
					Validator: s.StrategyName(),
				})
			}
		}

		if role, ok := msg["role"].(string); ok && !validMessageRoles[role] {
			result.AddError(Error{
				Code:       "INVALID_MESSAGE_ROLE",
				Message:    fmt.Sprintf("dialogue_history[%d] has unknown role %q", i, role),
				Severity:   SeverityHigh,
				Field:      fmt.Sprintf("dialogue_history[%d].role", i),
				Value:      role,
				Validator:  s.StrategyName(),
				Suggestion: "use one of: user, assistant, system, tool",
			})
		}

		if ts, ok := msg["timestamp"].(string); ok && !iso8601Pattern.MatchString(ts) {
			result.AddError(Error{
				Code:       "INVALID_TIMESTAMP_FORMAT",
				Message:    fmt.Sprintf("dialogue_history[%d] has a malformed timestamp", i),
				Severity:   SeverityHigh,
				Field:      fmt.Sprintf("dialogue_history[%d].timestamp", i),
				Value:      ts,
				Validator:  s.StrategyName(),
				Suggestion: "use an ISO-8601 timestamp, e.g. 2026-01-02T15:04:05Z",
			})
		}
	}
}
