package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Accepted session id shapes, tried in order.
var sessionIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[a-zA-Z0-9_-]{8,64}$`),
	regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`),
	regexp.MustCompile(`^session_[a-zA-Z0-9_]{4,32}$`),
	regexp.MustCompile(`^[a-zA-Z0-9]{16,32}$`),
}

// SessionStore answers existence and last-activity questions for session
// ids. Implementations typically wrap a session database; a nil store
// disables the checks that need one.
type SessionStore interface {
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	LastActivity(ctx context.Context, sessionID string) (time.Time, error)
}

// SessionStrategy checks session id format, optional existence and expiry
// against a SessionStore, and cross-field consistency between the session
// id, the session metadata and the dialogue history.
type SessionStrategy struct {
	validateFormat      bool
	checkExpiry         bool
	requireValidSession bool
	maxInactivity       time.Duration

	store SessionStore
}

// NewSessionStrategy builds the strategy from config. Existence and
// expiry checks only run when a store is attached via WithStore.
func NewSessionStrategy(config map[string]any) *SessionStrategy {
	return &SessionStrategy{
		validateFormat:      configBool(config, "validate_session_id_format", true),
		checkExpiry:         configBool(config, "check_session_expiry", false),
		requireValidSession: configBool(config, "require_valid_session", false),
		maxInactivity:       configDuration(config, "max_session_inactivity", time.Hour),
	}
}

// WithStore attaches a session store and returns the strategy.
func (s *SessionStrategy) WithStore(store SessionStore) *SessionStrategy {
	s.store = store
	return s
}

// StrategyName implements Strategy.
func (s *SessionStrategy) StrategyName() string { return "session" }

// Execute implements Strategy.
func (s *SessionStrategy) Execute(ctx context.Context, data map[string]any, _ map[string]any) (*Result, error) {
	result := NewResult()
	if data == nil {
		return result, nil
	}

	raw, present := data["session_id"]

	if s.validateFormat {
		s.checkFormat(raw, present, result)
	}

	sessionID, _ := raw.(string)
	sessionID = strings.TrimSpace(sessionID)

	if sessionID != "" && s.store != nil {
		if s.requireValidSession {
			s.checkExistence(ctx, sessionID, result)
		}
		if s.checkExpiry {
			s.checkExpiration(ctx, sessionID, result)
		}
	}

	s.checkConsistency(data, sessionID, result)

	return result, nil
}

func (s *SessionStrategy) checkFormat(raw any, present bool, result *Result) {
	if !present || raw == nil {
		result.AddError(Error{
			Code:       "MISSING_SESSION_ID",
			Message:    "session id is missing",
			Severity:   SeverityHigh,
			Field:      "session_id",
			Validator:  s.StrategyName(),
			Suggestion: "provide a valid session id",
		})
		return
	}

	str, ok := raw.(string)
	if !ok {
		result.AddError(NewFormatError("session_id", "string", raw, s.StrategyName()))
		return
	}

	str = strings.TrimSpace(str)
	if str == "" {
		result.AddError(Error{
			Code:       "EMPTY_SESSION_ID",
			Message:    "session id must not be empty",
			Severity:   SeverityHigh,
			Field:      "session_id",
			Validator:  s.StrategyName(),
			Suggestion: "provide a non-empty session id",
		})
		return
	}

	for _, pattern := range sessionIDPatterns {
		if pattern.MatchString(str) {
			return
		}
	}
	result.AddError(Error{
		Code:       "INVALID_SESSION_ID_FORMAT",
		Message:    fmt.Sprintf("invalid session id format: %q", str),
		Severity:   SeverityMedium,
		Field:      "session_id",
		Value:      str,
		Validator:  s.StrategyName(),
		Suggestion: "use 8-64 alphanumeric characters, a UUID, or a session_ prefixed id",
		Metadata:   map[string]any{"session_id_length": len(str)},
	})
}

func (s *SessionStrategy) checkExistence(ctx context.Context, sessionID string, result *Result) {
	exists, err := s.store.SessionExists(ctx, sessionID)
	if err != nil {
		result.AddWarning(Error{
			Code:       "SESSION_CHECK_FAILED",
			Message:    fmt.Sprintf("could not verify session existence: %v", err),
			Severity:   SeverityLow,
			Field:      "session_id",
			Validator:  s.StrategyName(),
			Suggestion: "the session store may be temporarily unavailable",
		})
		return
	}
	if !exists {
		result.AddError(Error{
			Code:       "SESSION_NOT_FOUND",
			Message:    fmt.Sprintf("session not found: %q", sessionID),
			Severity:   SeverityHigh,
			Field:      "session_id",
			Value:      sessionID,
			Validator:  s.StrategyName(),
			Suggestion: "use an existing session id or create a new session",
		})
	}
}

func (s *SessionStrategy) checkExpiration(ctx context.Context, sessionID string, result *Result) {
	lastActivity, err := s.store.LastActivity(ctx, sessionID)
	if err != nil {
		result.AddWarning(Error{
			Code:       "SESSION_EXPIRY_CHECK_FAILED",
			Message:    fmt.Sprintf("could not check session expiry: %v", err),
			Severity:   SeverityLow,
			Field:      "session_id",
			Validator:  s.StrategyName(),
			Suggestion: "the session store may be temporarily unavailable",
		})
		return
	}
	if lastActivity.IsZero() {
		return
	}

	inactive := time.Since(lastActivity)
	if inactive > s.maxInactivity {
		result.AddError(Error{
			Code:       "SESSION_EXPIRED",
			Message:    fmt.Sprintf("session expired: inactive for %s, limit %s", inactive.Round(time.Second), s.maxInactivity),
			Severity:   SeverityMedium,
			Field:      "session_id",
			Value:      sessionID,
			Validator:  s.StrategyName(),
			Suggestion: "create a new session or re-activate the existing one",
			Metadata: map[string]any{
				"inactivity_seconds": int(inactive.Seconds()),
				"max_inactivity":     int(s.maxInactivity.Seconds()),
				"last_activity":      lastActivity.Unix(),
			},
		})
	}
}

func (s *SessionStrategy) checkConsistency(data map[string]any, sessionID string, result *Result) {
	if sessionID == "" {
		return
	}

	if meta, ok := data["session_metadata"].(map[string]any); ok {
		if metaID, ok := meta["session_id"].(string); ok && metaID != "" && metaID != sessionID {
			result.AddError(Error{
				Code:       "SESSION_ID_MISMATCH",
				Message:    fmt.Sprintf("session id mismatch: %q in payload vs %q in metadata", sessionID, metaID),
				Severity:   SeverityMedium,
				Field:      "session_metadata.session_id",
				Validator:  s.StrategyName(),
				Suggestion: "keep the metadata session id consistent with the main session id",
				Metadata:   map[string]any{"main_session_id": sessionID, "metadata_session_id": metaID},
			})
		}
	}

	history, ok := data["dialogue_history"].([]any)
	if !ok {
		return
	}
	for i, entry := range history {
		msg, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		msgMeta, ok := msg["metadata"].(map[string]any)
		if !ok {
			continue
		}
		if msgID, ok := msgMeta["session_id"].(string); ok && msgID != "" && msgID != sessionID {
			result.AddWarning(Error{
				Code:       "MESSAGE_SESSION_MISMATCH",
				Message:    fmt.Sprintf("message %d belongs to session %q, current session is %q", i+1, msgID, sessionID),
				Severity:   SeverityMedium,
				Field:      fmt.Sprintf("dialogue_history[%d].metadata.session_id", i),
				Validator:  s.StrategyName(),
				Suggestion: "ensure all messages belong to the current session",
				Metadata: map[string]any{
					"message_index":    i,
					"expected_session": sessionID,
					"actual_session":   msgID,
				},
			})
		}
	}
}
