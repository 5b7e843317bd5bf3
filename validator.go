package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/GoCodeAlone/validate/cache"
)

// Priority orders validators inside a chain. Higher priorities run first;
// ties keep insertion order.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a priority name to a Priority. Unknown names map
// to PriorityMedium.
func ParsePriority(name string) Priority {
	switch name {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Validator is a single named rule check executed by a chain. Validators
// are stateless and safely reentrant across concurrent contexts; shared
// state lives only in the cache manager and rate limiter.
type Validator interface {
	// Validate inspects the context's request and returns a result.
	// Expected validation failures are ordinary results carrying errors;
	// the returned error is reserved for infrastructure failures, which
	// the chain converts to a synthetic medium-severity error.
	Validate(ctx context.Context, vc *Context) (*Result, error)

	// Name returns the unique validator name used in config, skip lists
	// and the validation path.
	Name() string

	// Priority determines execution order within a chain.
	Priority() Priority
}

// Strategy is one independent check over raw payload data. Strategies
// implement the actual inspection logic; a Validator adapts a Strategy
// into a chain with a name, priority and per-validator rules.
type Strategy interface {
	// Execute validates data against the supplied rules.
	Execute(ctx context.Context, data map[string]any, rules map[string]any) (*Result, error)

	// StrategyName identifies the strategy, e.g. "security".
	StrategyName() string
}

// CacheableStrategy is implemented by strategies whose verdict for a given
// payload is worth memoizing through the cache manager.
type CacheableStrategy interface {
	Strategy

	// CacheTTL returns how long a memoized verdict stays valid.
	CacheTTL() time.Duration
}

// StrategyValidator adapts a Strategy to the Validator interface.
type StrategyValidator struct {
	strategy Strategy
	name     string
	priority Priority
	rules    map[string]any
	cache    *cache.Manager
}

// NewStrategyValidator binds a strategy to a chain-facing validator. The
// cache manager may be nil, which disables memoization even for cacheable
// strategies.
func NewStrategyValidator(name string, priority Priority, strategy Strategy, rules map[string]any, cacheManager *cache.Manager) (*StrategyValidator, error) {
	if strategy == nil {
		return nil, ErrStrategyNil
	}
	if name == "" {
		name = strategy.StrategyName()
	}
	return &StrategyValidator{
		strategy: strategy,
		name:     name,
		priority: priority,
		rules:    rules,
		cache:    cacheManager,
	}, nil
}

// Name implements Validator.
func (v *StrategyValidator) Name() string { return v.name }

// Priority implements Validator.
func (v *StrategyValidator) Priority() Priority { return v.priority }

// Validate implements Validator. The static rules are extended with the
// caller identity from the request descriptor, so strategies that need it
// (rate limiting, session checks) can read it from their rules map.
// Cacheable strategies memoize their result keyed by validator name plus
// the context's payload fingerprint; a cached verdict is returned without
// re-running the strategy, and the hit or miss is recorded in the result
// metrics.
func (v *StrategyValidator) Validate(ctx context.Context, vc *Context) (*Result, error) {
	rules := v.effectiveRules(vc)

	cacheable, ok := v.strategy.(CacheableStrategy)
	if !ok || v.cache == nil {
		return v.strategy.Execute(ctx, vc.Request.Payload, rules)
	}

	key := v.name + "|" + vc.CacheKey()
	if cached, hit := v.cache.Get(key); hit {
		if result, isResult := cached.(*Result); isResult {
			cp := *result
			cp.Metrics.CacheHits++
			return &cp, nil
		}
		v.cache.Delete(key)
	}

	result, err := v.strategy.Execute(ctx, vc.Request.Payload, rules)
	if err != nil {
		return result, err
	}
	stored := *result
	v.cache.Set(key, &stored, cacheable.CacheTTL())
	result.Metrics.CacheMisses++
	return result, nil
}

// effectiveRules copies the static rules and adds the per-request identity
// fields strategies may consult.
func (v *StrategyValidator) effectiveRules(vc *Context) map[string]any {
	rules := make(map[string]any, len(v.rules)+4)
	for k, val := range v.rules {
		rules[k] = val
	}
	rules["endpoint"] = vc.Request.Endpoint
	if vc.Request.ClientIP != "" {
		rules["client_ip"] = vc.Request.ClientIP
	}
	if vc.Request.UserID != "" {
		rules["user_id"] = vc.Request.UserID
	}
	if vc.Request.SessionID != "" {
		rules["session_id"] = vc.Request.SessionID
	}
	return rules
}
