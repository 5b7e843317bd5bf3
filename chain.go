package validate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultValidatorTimeout bounds each validator call.
	DefaultValidatorTimeout = 2 * time.Second
	// DefaultMaxConcurrency bounds the parallel chain's fan-out.
	DefaultMaxConcurrency = 8
)

// ChainOption configures a Chain at construction.
type ChainOption func(*Chain)

// WithMode sets the chain's default execution mode.
func WithMode(mode Mode) ChainOption {
	return func(c *Chain) { c.mode = mode }
}

// WithValidatorTimeout sets the per-validator timeout budget.
func WithValidatorTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxConcurrency bounds the parallel chain's concurrent validators.
func WithMaxConcurrency(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithLogger sets the chain's logger.
func WithLogger(logger Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type chainEntry struct {
	validator Validator
	seq       int // insertion order, tie-breaker after priority
}

// Chain orders and executes validators against one context, serially or in
// parallel, under a configurable execution mode. A chain may be shared
// across concurrent requests; its validator list is re-sorted only when
// validators are added.
type Chain struct {
	name           string
	mode           Mode
	timeout        time.Duration
	maxConcurrency int
	logger         Logger

	mu      sync.RWMutex
	entries []chainEntry
	nextSeq int

	observers observerList
}

// NewChain builds an empty chain.
func NewChain(name string, opts ...ChainOption) *Chain {
	c := &Chain{
		name:           name,
		mode:           ModeContinue,
		timeout:        DefaultValidatorTimeout,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// Mode returns the chain's default execution mode.
func (c *Chain) Mode() Mode { return c.mode }

// AddValidator appends a validator and re-sorts the chain by
// (priority desc, insertion order asc). It returns the chain for chaining.
func (c *Chain) AddValidator(v Validator) *Chain {
	if v == nil {
		return c
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, chainEntry{validator: v, seq: c.nextSeq})
	c.nextSeq++
	sort.SliceStable(c.entries, func(i, j int) bool {
		if c.entries[i].validator.Priority() != c.entries[j].validator.Priority() {
			return c.entries[i].validator.Priority() > c.entries[j].validator.Priority()
		}
		return c.entries[i].seq < c.entries[j].seq
	})
	return c
}

// RemoveValidator drops the named validator, reporting whether it existed.
func (c *Chain) RemoveValidator(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.validator.Name() == name {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return true
		}
	}
	return false
}

// ValidatorCount returns the number of validators in the chain.
func (c *Chain) ValidatorCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ValidatorNames returns validator names in execution order.
func (c *Chain) ValidatorNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.validator.Name()
	}
	return names
}

// AddObserver registers an observer for this chain's notifications.
func (c *Chain) AddObserver(o Observer) error {
	return c.observers.add(o)
}

// RemoveObserver unregisters the named observer.
func (c *Chain) RemoveObserver(name string) bool {
	return c.observers.remove(name)
}

func (c *Chain) validatorsSnapshot() []Validator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vs := make([]Validator, len(c.entries))
	for i, e := range c.entries {
		vs[i] = e.validator
	}
	return vs
}

func (c *Chain) effectiveMode(vc *Context) Mode {
	if vc.Mode != "" {
		return vc.Mode
	}
	if c.mode != "" {
		return c.mode
	}
	return ModeContinue
}

// Validate executes the chain serially, in priority order, against one
// context. Expected validation failures are aggregated into the returned
// result; infrastructure failures (panics, unexpected errors, timeouts)
// are converted into synthetic medium-severity errors, so Validate never
// returns an error and never propagates a panic.
func (c *Chain) Validate(ctx context.Context, vc *Context) *Result {
	mode := c.effectiveMode(vc)
	validators := c.validatorsSnapshot()

	aggregate := NewResult()
	aggregate.RequestID = vc.Request.RequestID
	aggregate.Metrics.TotalValidators = len(validators)

	c.observers.notifyStart(ctx, vc)

	for _, v := range validators {
		name := v.Name()
		if vc.ShouldSkip(name) {
			aggregate.Metrics.SkippedValidators++
			continue
		}
		vc.AddToPath(name)

		result := c.runValidator(ctx, v, vc)
		aggregate = aggregate.Merge(result)
		aggregate.Metrics.ExecutedValidators++
		if result.Status == StatusError {
			aggregate.Metrics.FailedValidators++
		}
		c.observers.notifyValidatorComplete(ctx, name, result)

		if mode == ModeFailFast && result.Status == StatusError {
			break
		}
	}

	aggregate = c.applyMode(mode, validators, aggregate)
	c.observers.notifyComplete(ctx, aggregate)
	return aggregate
}

// ValidateParallel fans out all validators concurrently, bounded by the
// configured max concurrency, then aggregates results in priority order
// regardless of completion order. The aggregated output ordering is
// deterministic even under timeouts or partial failures.
func (c *Chain) ValidateParallel(ctx context.Context, vc *Context) *Result {
	mode := c.effectiveMode(vc)
	validators := c.validatorsSnapshot()

	aggregate := NewResult()
	aggregate.RequestID = vc.Request.RequestID
	aggregate.Metrics.TotalValidators = len(validators)

	c.observers.notifyStart(ctx, vc)

	active := make([]Validator, 0, len(validators))
	for _, v := range validators {
		if vc.ShouldSkip(v.Name()) {
			aggregate.Metrics.SkippedValidators++
			continue
		}
		active = append(active, v)
	}

	results := make([]*Result, len(active))
	sem := make(chan struct{}, c.maxConcurrency)
	var wg sync.WaitGroup
	for i, v := range active {
		wg.Add(1)
		go func(i int, v Validator) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = c.runValidator(ctx, v, vc)
		}(i, v)
	}
	wg.Wait()

	// Aggregation strictly follows priority order, not completion order.
	for i, v := range active {
		name := v.Name()
		vc.AddToPath(name)
		result := results[i]
		aggregate = aggregate.Merge(result)
		aggregate.Metrics.ExecutedValidators++
		if result.Status == StatusError {
			aggregate.Metrics.FailedValidators++
		}
		c.observers.notifyValidatorComplete(ctx, name, result)
	}

	aggregate = c.applyMode(mode, validators, aggregate)
	c.observers.notifyComplete(ctx, aggregate)
	return aggregate
}

// runValidator executes one validator under the per-validator timeout
// budget. Timeouts yield a synthetic VALIDATOR_TIMEOUT error; panics and
// unexpected errors are caught, logged, reported to observers and
// converted into an INTERNAL_VALIDATION_ERROR, so the chain keeps going.
func (c *Chain) runValidator(ctx context.Context, v Validator, vc *Context) *Result {
	name := v.Name()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	started := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %s: %v", ErrValidatorPanic, name, r)}
			}
		}()
		result, err := v.Validate(callCtx, vc)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		// Soft cancellation: the in-flight result is discarded.
		c.logger.Warn("validator timed out", "validator", name, "timeout", c.timeout)
		result := NewResult()
		result.AddError(Error{
			Code:      CodeValidatorTimeout,
			Message:   fmt.Sprintf("validator %s exceeded its time budget of %s", name, c.timeout),
			Severity:  SeverityMedium,
			Validator: name,
		})
		result.ExecutionTime = time.Since(started)
		return result

	case o := <-done:
		elapsed := time.Since(started)
		if o.err != nil {
			c.logger.Error("validator failed unexpectedly",
				"validator", name,
				"endpoint", vc.Request.Endpoint,
				"requestId", vc.Request.RequestID,
				"error", o.err,
			)
			c.observers.notifyError(ctx, o.err, vc)
			result := NewResult()
			result.AddError(Error{
				Code:      CodeInternalValidationError,
				Message:   fmt.Sprintf("validator %s failed: %v", name, o.err),
				Severity:  SeverityMedium,
				Validator: name,
			})
			result.ExecutionTime = elapsed
			return result
		}
		result := o.result
		if result == nil {
			result = NewResult()
		}
		if result.ExecutionTime == 0 {
			result.ExecutionTime = elapsed
		}
		if result.Metrics.ExecutionTime == 0 {
			result.Metrics.ExecutionTime = result.ExecutionTime
		}
		return result
	}
}

// applyMode applies strict promotion or lenient demotion to the aggregated
// result, preserving error/warning order.
func (c *Chain) applyMode(mode Mode, validators []Validator, aggregate *Result) *Result {
	switch mode {
	case ModeStrict:
		if len(aggregate.Warnings) == 0 {
			return aggregate
		}
		promoted := *aggregate
		promoted.Errors = append(append([]Error{}, aggregate.Errors...), aggregate.Warnings...)
		promoted.Warnings = nil
		promoted.Status = StatusError
		return &promoted

	case ModeLenient:
		if len(aggregate.Errors) == 0 {
			return aggregate
		}
		critical := make(map[string]bool, len(validators))
		for _, v := range validators {
			if v.Priority() == PriorityCritical {
				critical[v.Name()] = true
			}
		}
		demoted := *aggregate
		demoted.Errors = nil
		demoted.Warnings = append([]Error{}, aggregate.Warnings...)
		for _, e := range aggregate.Errors {
			if critical[e.Validator] {
				demoted.Errors = append(demoted.Errors, e)
			} else {
				demoted.Warnings = append(demoted.Warnings, e)
			}
		}
		switch {
		case len(demoted.Errors) > 0:
			demoted.Status = StatusError
		case len(demoted.Warnings) > 0:
			demoted.Status = StatusWarning
		default:
			demoted.Status = StatusSuccess
		}
		return &demoted

	default:
		return aggregate
	}
}
