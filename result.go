// Package validate implements an asynchronous, pluggable request validation
// pipeline. Inbound request payloads are inspected by an ordered chain of
// validators for security threats, structural violations, content-quality
// problems and abuse, while observers receive progress and outcome signals.
//
// The package follows a chain-of-responsibility design: each validator is a
// stateless strategy producing a Result, and a Chain orders and executes the
// validators against one Context under a configurable execution mode. Shared
// state (memoization cache, rate-limit counters) lives in the cache and
// ratelimit subpackages and is passed in by reference.
package validate

import (
	"fmt"
	"time"
)

// Severity classifies how serious a validation error is, independent of any
// HTTP mapping. Severities are ordered: Critical > High > Medium > Low.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts a severity name to a Severity. Unknown names map
// to SeverityMedium.
func ParseSeverity(name string) Severity {
	switch name {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "low":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Status is the overall outcome of a validation pass.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Error describes one violated rule. The severity is set at construction
// and never mutated afterwards.
type Error struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Severity   Severity       `json:"severity"`
	Field      string         `json:"field,omitempty"`
	Value      any            `json:"value,omitempty"`
	Validator  string         `json:"validator,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// IsCritical reports whether the error carries critical severity.
func (e Error) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// NewXSSError builds the standard error for a cross-site-scripting match.
func NewXSSError(match, validator string) Error {
	return Error{
		Code:       "XSS_DETECTED",
		Message:    "potential cross-site scripting (XSS) content detected",
		Severity:   SeverityCritical,
		Value:      match,
		Validator:  validator,
		Suggestion: "remove HTML tags, JavaScript code and event handlers from the payload",
	}
}

// NewSQLInjectionError builds the standard error for a SQL injection match.
func NewSQLInjectionError(match, validator string) Error {
	return Error{
		Code:       "SQL_INJECTION_DETECTED",
		Message:    "potential SQL injection detected",
		Severity:   SeverityCritical,
		Value:      match,
		Validator:  validator,
		Suggestion: "avoid SQL keywords and special characters; use parameterized queries",
	}
}

// NewSizeError builds the standard error for an exceeded size bound.
func NewSizeError(field string, current, max int, validator string) Error {
	return Error{
		Code:       "SIZE_LIMIT_EXCEEDED",
		Message:    fmt.Sprintf("size limit exceeded: %d bytes, maximum allowed %d", current, max),
		Severity:   SeverityHigh,
		Field:      field,
		Value:      current,
		Validator:  validator,
		Suggestion: fmt.Sprintf("keep the content below %d bytes", max),
	}
}

// NewFormatError builds the standard error for a field with the wrong type
// or shape.
func NewFormatError(field, expected string, actual any, validator string) Error {
	return Error{
		Code:       "INVALID_FORMAT",
		Message:    fmt.Sprintf("field %q has invalid format, expected %s", field, expected),
		Severity:   SeverityHigh,
		Field:      field,
		Value:      actual,
		Validator:  validator,
		Suggestion: fmt.Sprintf("ensure field %q conforms to %s", field, expected),
	}
}

// Metrics aggregates execution counters for one validation pass or for a
// merged set of passes.
type Metrics struct {
	TotalValidators    int           `json:"totalValidators"`
	ExecutedValidators int           `json:"executedValidators"`
	SkippedValidators  int           `json:"skippedValidators"`
	FailedValidators   int           `json:"failedValidators"`
	ExecutionTime      time.Duration `json:"executionTime"`
	CacheHits          int           `json:"cacheHits"`
	CacheMisses        int           `json:"cacheMisses"`
}

// SuccessRate returns the fraction of executed validators that did not fail.
func (m Metrics) SuccessRate() float64 {
	if m.ExecutedValidators == 0 {
		return 0
	}
	return float64(m.ExecutedValidators-m.FailedValidators) / float64(m.ExecutedValidators)
}

// CacheHitRate returns the fraction of cache lookups that hit.
func (m Metrics) CacheHitRate() float64 {
	total := m.CacheHits + m.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(total)
}

// AverageExecutionTime returns the mean per-validator execution time.
func (m Metrics) AverageExecutionTime() time.Duration {
	if m.ExecutedValidators == 0 {
		return 0
	}
	return m.ExecutionTime / time.Duration(m.ExecutedValidators)
}

func (m Metrics) add(other Metrics) Metrics {
	return Metrics{
		TotalValidators:    m.TotalValidators + other.TotalValidators,
		ExecutedValidators: m.ExecutedValidators + other.ExecutedValidators,
		SkippedValidators:  m.SkippedValidators + other.SkippedValidators,
		FailedValidators:   m.FailedValidators + other.FailedValidators,
		ExecutionTime:      m.ExecutionTime + other.ExecutionTime,
		CacheHits:          m.CacheHits + other.CacheHits,
		CacheMisses:        m.CacheMisses + other.CacheMisses,
	}
}

// Result is the outcome of one validator or of a whole chain. A constructed
// Result is treated as immutable by the chain; aggregation produces a new
// Result rather than mutating children.
type Result struct {
	Status        Status         `json:"status"`
	Errors        []Error        `json:"errors,omitempty"`
	Warnings      []Error        `json:"warnings,omitempty"`
	ExecutionTime time.Duration  `json:"executionTime"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Metrics       Metrics        `json:"metrics"`
	RequestID     string         `json:"requestId,omitempty"`
}

// NewResult returns an empty successful result.
func NewResult() *Result {
	return &Result{Status: StatusSuccess}
}

// IsValid reports whether the result allows the request to proceed
// (success or warnings only).
func (r *Result) IsValid() bool {
	return r.Status == StatusSuccess || r.Status == StatusWarning
}

// HasCriticalErrors reports whether any error carries critical severity.
func (r *Result) HasCriticalErrors() bool {
	for _, e := range r.Errors {
		if e.IsCritical() {
			return true
		}
	}
	return false
}

// AddError appends an error and raises the status to error.
func (r *Result) AddError(err Error) {
	r.Errors = append(r.Errors, err)
	r.Status = StatusError
}

// AddWarning appends a warning; a successful result becomes a warning.
func (r *Result) AddWarning(w Error) {
	r.Warnings = append(r.Warnings, w)
	if r.Status == StatusSuccess {
		r.Status = StatusWarning
	}
}

// Merge combines two results into a new one. Errors and warnings are
// concatenated preserving order, execution times are summed, and the merged
// status is error if either side has errors, else warning if either side
// has warnings, else success.
func (r *Result) Merge(other *Result) *Result {
	if other == nil {
		cp := *r
		return &cp
	}

	merged := &Result{
		Status:        StatusSuccess,
		Errors:        append(append([]Error{}, r.Errors...), other.Errors...),
		Warnings:      append(append([]Error{}, r.Warnings...), other.Warnings...),
		ExecutionTime: r.ExecutionTime + other.ExecutionTime,
		Metrics:       r.Metrics.add(other.Metrics),
		RequestID:     r.RequestID,
	}
	if merged.RequestID == "" {
		merged.RequestID = other.RequestID
	}

	switch {
	case len(merged.Errors) > 0:
		merged.Status = StatusError
	case len(merged.Warnings) > 0:
		merged.Status = StatusWarning
	}

	if len(r.Metadata) > 0 || len(other.Metadata) > 0 {
		merged.Metadata = make(map[string]any, len(r.Metadata)+len(other.Metadata))
		for k, v := range r.Metadata {
			merged.Metadata[k] = v
		}
		for k, v := range other.Metadata {
			merged.Metadata[k] = v
		}
	}

	return merged
}
