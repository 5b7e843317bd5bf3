package validate

import (
	"context"
	"fmt"
	"strings"
)

var spamPatterns = compileAll(
	`[!@#$%^&*()_+={}\[\]|\\:";'<>?,./-]{20,}`,
	`\b[A-Z]{20,}\b`,
	`\d{50,}`,
)

// hasCharRun reports whether s contains the same rune repeated at least
// n times in a row. RE2 has no backreferences, so run detection is a scan.
func hasCharRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// hasWordRun reports whether s contains the same token three or more
// times in a row, case-insensitively.
func hasWordRun(s string) bool {
	tokens := strings.Fields(strings.ToLower(s))
	run := 1
	for i := 1; i < len(tokens); i++ {
		if tokens[i] == tokens[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// isSingleRune reports whether s consists of one rune repeated.
func isSingleRune(s string) bool {
	var first rune
	for i, r := range s {
		if i == 0 {
			first = r
			continue
		}
		if r != first {
			return false
		}
	}
	return len(s) > 0
}

// ContentStrategy applies content-quality heuristics: length bounds,
// repetition ratio, spam signatures and emptiness.
type ContentStrategy struct {
	minContentLength   int
	maxContentLength   int
	maxRepetitionRatio float64
	enableSpam         bool
}

// NewContentStrategy builds the strategy from its config map.
func NewContentStrategy(config map[string]any) *ContentStrategy {
	return &ContentStrategy{
		minContentLength:   configInt(config, "min_content_length", 1),
		maxContentLength:   configInt(config, "max_message_length", 10000),
		maxRepetitionRatio: configFloat(config, "max_repetition_ratio", 0.8),
		enableSpam:         configBool(config, "enable_spam_detection", true),
	}
}

// StrategyName implements Strategy.
func (s *ContentStrategy) StrategyName() string { return "content" }

// Execute implements Strategy. The dialogue history is the primary content
// surface; a top-level "content" field is validated the same way.
func (s *ContentStrategy) Execute(_ context.Context, data map[string]any, _ map[string]any) (*Result, error) {
	result := NewResult()

	if content, ok := data["content"].(string); ok {
		s.checkContent(content, "content", result)
	}

	history, ok := data["dialogue_history"].([]any)
	if !ok {
		return result, nil
	}

	seen := make(map[string]int)
	for i, raw := range history {
		msg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		content, ok := msg["content"].(string)
		if !ok {
			continue
		}
		field := fmt.Sprintf("dialogue_history[%d].content", i)
		s.checkContent(content, field, result)

		if first, dup := seen[content]; dup && strings.TrimSpace(content) != "" {
			result.AddWarning(Error{
				Code:       "DUPLICATE_MESSAGES_DETECTED",
				Message:    fmt.Sprintf("message %d duplicates message %d", i, first),
				Severity:   SeverityLow,
				Field:      field,
				Validator:  s.StrategyName(),
				Suggestion: "remove repeated messages from the dialogue history",
			})
		} else {
			seen[content] = i
		}
	}

	return result, nil
}

func (s *ContentStrategy) checkContent(content, field string, result *Result) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		result.AddError(Error{
			Code:       "EMPTY_MESSAGE_CONTENT",
			Message:    "message content is empty",
			Severity:   SeverityMedium,
			Field:      field,
			Validator:  s.StrategyName(),
			Suggestion: "provide non-empty message content",
		})
		return
	}
	if len(trimmed) < s.minContentLength {
		result.AddError(Error{
			Code:      "MESSAGE_CONTENT_TOO_SHORT",
			Message:   fmt.Sprintf("content has %d characters, minimum is %d", len(trimmed), s.minContentLength),
			Severity:  SeverityMedium,
			Field:     field,
			Validator: s.StrategyName(),
		})
	}
	if len(content) > s.maxContentLength {
		result.AddError(Error{
			Code:       "MESSAGE_CONTENT_TOO_LONG",
			Message:    fmt.Sprintf("content has %d characters, maximum is %d", len(content), s.maxContentLength),
			Severity:   SeverityMedium,
			Field:      field,
			Validator:  s.StrategyName(),
			Suggestion: fmt.Sprintf("shorten the content to at most %d characters", s.maxContentLength),
		})
	}

	if ratio := repetitionRatio(content); ratio > s.maxRepetitionRatio {
		result.AddWarning(Error{
			Code:       "HIGHLY_REPETITIVE_CONTENT",
			Message:    fmt.Sprintf("content repetition ratio %.2f exceeds %.2f, likely spam", ratio, s.maxRepetitionRatio),
			Severity:   SeverityMedium,
			Field:      field,
			Validator:  s.StrategyName(),
			Suggestion: "reduce repeated words and lines",
			Metadata:   map[string]any{"repetition_ratio": ratio},
		})
	}

	if s.enableSpam {
		spam := hasCharRun(content, 11) || hasWordRun(content)
		if !spam {
			for _, p := range spamPatterns {
				if p.MatchString(content) {
					spam = true
					break
				}
			}
		}
		if spam {
			result.AddWarning(Error{
				Code:       "SPAM_CONTENT_DETECTED",
				Message:    "content matches a spam signature",
				Severity:   SeverityMedium,
				Field:      field,
				Validator:  s.StrategyName(),
				Suggestion: "remove repeated characters, symbol runs and shouting",
			})
		}
		if isSingleRune(trimmed) && len(trimmed) > 1 {
			result.AddWarning(Error{
				Code:      "LOW_QUALITY_CONTENT",
				Message:   "content appears to carry no information",
				Severity:  SeverityLow,
				Field:     field,
				Validator: s.StrategyName(),
			})
		}
	}
}

// repetitionRatio returns the fraction of tokens that are repeats of an
// earlier token. Single-token content is never repetitive.
func repetitionRatio(content string) float64 {
	tokens := strings.Fields(strings.ToLower(content))
	if len(tokens) < 2 {
		return 0
	}
	unique := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		unique[t] = true
	}
	return 1 - float64(len(unique))/float64(len(tokens))
}
