package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/GoCodeAlone/validate/ratelimit"
)

// RateLimitStrategy consults sliding-window limiters keyed by client IP,
// user id and session id. Per-user limits are twice as loose as per-IP
// limits (many users can share a NAT'd address); per-session limits are
// twice as tight. The identity values are read from the per-call rules,
// which the strategy adapter populates from the request descriptor.
type RateLimitStrategy struct {
	ipLimiter      *ratelimit.Limiter
	userLimiter    *ratelimit.Limiter
	sessionLimiter *ratelimit.Limiter

	limitByIP      bool
	limitByUser    bool
	limitBySession bool
}

// NewRateLimitStrategy builds the strategy and its limiters from config.
// When a shared limiter is desired across strategies, construct the
// limiters externally and use NewRateLimitStrategyWithLimiter.
func NewRateLimitStrategy(config map[string]any) *RateLimitStrategy {
	base := ratelimit.Config{
		RequestsPerMinute: configInt(config, "requests_per_minute", 60),
		RequestsPerHour:   configInt(config, "requests_per_hour", 1000),
		BurstSize:         configInt(config, "burst_size", 10),
		BurstWindow:       configDuration(config, "burst_window", 0),
	}
	user := base
	user.RequestsPerMinute *= 2
	user.RequestsPerHour *= 2
	user.BurstSize *= 2
	session := base
	session.RequestsPerMinute /= 2
	session.RequestsPerHour /= 2

	return &RateLimitStrategy{
		ipLimiter:      ratelimit.New(base),
		userLimiter:    ratelimit.New(user),
		sessionLimiter: ratelimit.New(session),
		limitByIP:      configBool(config, "enable_ip_based_limiting", true),
		limitByUser:    configBool(config, "enable_user_based_limiting", true),
		limitBySession: configBool(config, "enable_session_based_limiting", false),
	}
}

// NewRateLimitStrategyWithLimiter builds a strategy that checks only the
// supplied limiter, keyed by client IP.
func NewRateLimitStrategyWithLimiter(limiter *ratelimit.Limiter) *RateLimitStrategy {
	return &RateLimitStrategy{
		ipLimiter: limiter,
		limitByIP: true,
	}
}

// StrategyName implements Strategy.
func (s *RateLimitStrategy) StrategyName() string { return "rate_limit" }

// Execute implements Strategy. Each enabled scope with a present identity
// is checked; a denial in any scope fails the request with the tightest
// violated window reported.
func (s *RateLimitStrategy) Execute(_ context.Context, _ map[string]any, rules map[string]any) (*Result, error) {
	result := NewResult()

	if s.limitByIP && s.ipLimiter != nil {
		if ip := configString(rules, "client_ip", ""); ip != "" {
			s.check(s.ipLimiter, "ip", ip, result)
		}
	}
	if s.limitByUser && s.userLimiter != nil {
		if user := configString(rules, "user_id", ""); user != "" {
			s.check(s.userLimiter, "user", user, result)
		}
	}
	if s.limitBySession && s.sessionLimiter != nil {
		if session := configString(rules, "session_id", ""); session != "" {
			s.check(s.sessionLimiter, "session", session, result)
		}
	}

	return result, nil
}

func (s *RateLimitStrategy) check(limiter *ratelimit.Limiter, scope, identity string, result *Result) {
	decision := limiter.Allow(scope + ":" + identity)
	if decision.Allowed {
		if result.Metadata == nil {
			result.Metadata = make(map[string]any)
		}
		result.Metadata[scope+"_rate_limit"] = map[string]any{
			"burst_remaining":  decision.BurstRemaining,
			"minute_remaining": decision.MinuteRemaining,
			"hour_remaining":   decision.HourRemaining,
		}
		return
	}

	// Burst violations are abuse signals; longer windows are ordinary
	// quota exhaustion.
	severity := SeverityHigh
	if decision.Window == ratelimit.WindowBurst {
		severity = SeverityCritical
	}
	result.AddError(Error{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    fmt.Sprintf("%s rate limit exceeded for %s window: %d of %d allowed", scope, decision.Window, decision.Current, decision.Limit),
		Severity:   severity,
		Validator:  s.StrategyName(),
		Suggestion: fmt.Sprintf("retry after %s", decision.RetryAfter.Round(time.Millisecond)),
		Metadata: map[string]any{
			"scope":       scope,
			"window":      string(decision.Window),
			"limit":       decision.Limit,
			"current":     decision.Current,
			"retry_after": decision.RetryAfter.Seconds(),
		},
	})
}
