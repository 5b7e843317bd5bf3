package validate

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// SizeStrategy bounds total payload size, individual string lengths,
// nested-structure depth and sequence lengths against configured maxima.
type SizeStrategy struct {
	maxRequestSize    int
	maxStringLength   int
	maxDepth          int
	maxArrayLength    int
	maxHistoryEntries int
}

// NewSizeStrategy builds the strategy from its config map. Defaults: 1 MiB
// request size, 10000-char strings, depth 10, 1000-element arrays, 50
// dialogue-history entries.
func NewSizeStrategy(config map[string]any) *SizeStrategy {
	return &SizeStrategy{
		maxRequestSize:    configInt(config, "max_request_size", 1<<20),
		maxStringLength:   configInt(config, "max_string_length", 10000),
		maxDepth:          configInt(config, "max_json_depth", 10),
		maxArrayLength:    configInt(config, "max_array_length", 1000),
		maxHistoryEntries: configInt(config, "max_dialogue_history_length", 50),
	}
}

// StrategyName implements Strategy.
func (s *SizeStrategy) StrategyName() string { return "size" }

// Execute implements Strategy.
func (s *SizeStrategy) Execute(_ context.Context, data map[string]any, _ map[string]any) (*Result, error) {
	result := NewResult()

	s.checkRequestSize(data, result)
	s.checkDepth(data, 0, result)
	s.checkArraysAndStrings(data, "", result)

	if history, ok := data["dialogue_history"].([]any); ok {
		if len(history) > s.maxHistoryEntries {
			result.AddWarning(Error{
				Code:       "DIALOGUE_HISTORY_TOO_LONG",
				Message:    fmt.Sprintf("dialogue history has %d entries, recommended maximum is %d", len(history), s.maxHistoryEntries),
				Severity:   SeverityMedium,
				Field:      "dialogue_history",
				Value:      len(history),
				Validator:  s.StrategyName(),
				Suggestion: fmt.Sprintf("keep dialogue history below %d entries, or compress older turns", s.maxHistoryEntries),
			})
		}
	}

	return result, nil
}

// checkRequestSize serializes the payload to measure its byte size.
func (s *SizeStrategy) checkRequestSize(data map[string]any, result *Result) {
	raw, err := json.Marshal(data)
	if err != nil {
		result.AddWarning(Error{
			Code:       "SIZE_CALCULATION_ERROR",
			Message:    fmt.Sprintf("could not compute request size: %v", err),
			Severity:   SeverityLow,
			Validator:  s.StrategyName(),
			Suggestion: "check the request data format",
		})
		return
	}
	if len(raw) > s.maxRequestSize {
		result.AddError(NewSizeError("request_body", len(raw), s.maxRequestSize, s.StrategyName()))
	}
}

func (s *SizeStrategy) checkDepth(value any, depth int, result *Result) {
	if depth > s.maxDepth {
		result.AddError(Error{
			Code:       "JSON_DEPTH_EXCEEDED",
			Message:    fmt.Sprintf("structure nesting exceeds limit: depth %d, maximum allowed %d", depth, s.maxDepth),
			Severity:   SeverityHigh,
			Field:      "depth",
			Validator:  s.StrategyName(),
			Suggestion: fmt.Sprintf("reduce nesting to at most %d levels", s.maxDepth),
		})
		return
	}
	switch v := value.(type) {
	case map[string]any:
		for _, child := range v {
			if isContainer(child) {
				s.checkDepth(child, depth+1, result)
				if hasDepthError(result) {
					return
				}
			}
		}
	case []any:
		for _, child := range v {
			if isContainer(child) {
				s.checkDepth(child, depth+1, result)
				if hasDepthError(result) {
					return
				}
			}
		}
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func hasDepthError(result *Result) bool {
	for _, e := range result.Errors {
		if e.Code == "JSON_DEPTH_EXCEEDED" {
			return true
		}
	}
	return false
}

func (s *SizeStrategy) checkArraysAndStrings(value any, path string, result *Result) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			s.checkArraysAndStrings(child, childPath, result)
		}
	case []any:
		if len(v) > s.maxArrayLength {
			result.AddError(Error{
				Code:       "ARRAY_LENGTH_EXCEEDED",
				Message:    fmt.Sprintf("array %q has %d elements, maximum allowed %d", path, len(v), s.maxArrayLength),
				Severity:   SeverityHigh,
				Field:      path,
				Value:      len(v),
				Validator:  s.StrategyName(),
				Suggestion: fmt.Sprintf("limit array %q to %d elements", path, s.maxArrayLength),
			})
		}
		for i, child := range v {
			s.checkArraysAndStrings(child, fmt.Sprintf("%s[%d]", path, i), result)
		}
	case string:
		if len(v) > s.maxStringLength {
			result.AddError(Error{
				Code:       "STRING_LENGTH_EXCEEDED",
				Message:    fmt.Sprintf("string %q has %d characters, maximum allowed %d", path, len(v), s.maxStringLength),
				Severity:   SeverityHigh,
				Field:      path,
				Value:      len(v),
				Validator:  s.StrategyName(),
				Suggestion: fmt.Sprintf("shorten field %q to at most %d characters", path, s.maxStringLength),
			})
		}
	}
}
