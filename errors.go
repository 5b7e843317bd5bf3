package validate

import (
	"errors"
)

// Pipeline errors
var (
	// Registry errors
	ErrValidatorNotFound          = errors.New("validator not found")
	ErrValidatorAlreadyRegistered = errors.New("validator already registered")
	ErrValidatorNameEmpty         = errors.New("validator name cannot be empty")
	ErrValidatorConstructorNil    = errors.New("validator constructor is nil")
	ErrValidatorDependencyMissing = errors.New("validator depends on unregistered validator")
	ErrValidatorDependencyCycle   = errors.New("circular dependency between validators")

	// Chain errors
	ErrChainEmpty     = errors.New("validation chain has no validators")
	ErrObserverNil    = errors.New("observer is nil")
	ErrContextNil     = errors.New("validation context is nil")
	ErrValidatorPanic = errors.New("validator panicked")

	// Config errors
	ErrConfigNil             = errors.New("config is nil")
	ErrTemplateNotFound      = errors.New("config template not found")
	ErrConfigFileUnsupported = errors.New("unsupported config file format")
	ErrEndpointNotConfigured = errors.New("no chain configured for endpoint")

	// Strategy errors
	ErrStrategyNil        = errors.New("strategy is nil")
	ErrRateLimiterMissing = errors.New("rate limiter not configured")
)

// Synthetic error codes produced by the chain engine itself rather than by
// a strategy.
const (
	CodeValidatorTimeout        = "VALIDATOR_TIMEOUT"
	CodeInternalValidationError = "INTERNAL_VALIDATION_ERROR"
)
