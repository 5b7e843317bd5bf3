package validate

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Mode controls how a chain reacts to failing validators.
type Mode string

const (
	// ModeFailFast stops at the first validator whose result is an error.
	ModeFailFast Mode = "fail_fast"
	// ModeContinue runs every validator and aggregates all results.
	// This is the default, chosen for diagnostics.
	ModeContinue Mode = "continue"
	// ModeStrict behaves like ModeContinue but promotes warnings to errors
	// in the aggregated result.
	ModeStrict Mode = "strict"
	// ModeLenient behaves like ModeContinue but demotes errors from
	// non-critical-priority validators to warnings.
	ModeLenient Mode = "lenient"
)

// ParseMode converts a mode name to a Mode, defaulting to ModeContinue.
func ParseMode(name string) Mode {
	switch Mode(name) {
	case ModeFailFast, ModeStrict, ModeLenient:
		return Mode(name)
	default:
		return ModeContinue
	}
}

// RequestDescriptor is the normalized view of an inbound request that the
// pipeline consumes. It is produced by a boundary adapter outside this
// package and is immutable for the duration of one validation pass.
type RequestDescriptor struct {
	// Endpoint identifies the target route, e.g. "/api/chat".
	Endpoint string
	// Payload is the opaque request body as nested maps, slices and
	// scalars. The pipeline never parses transport framing itself.
	Payload map[string]any
	// ClientIP is the remote address as reported by the transport.
	ClientIP string
	// UserID is the authenticated user, if any.
	UserID string
	// SessionID is the caller-supplied session identifier, if any.
	SessionID string
	// RequestID correlates log entries, events and responses.
	RequestID string
}

// NewRequestDescriptor builds a descriptor for the given endpoint and
// payload, minting a time-ordered request ID when none is supplied.
func NewRequestDescriptor(endpoint string, payload map[string]any) RequestDescriptor {
	return RequestDescriptor{
		Endpoint:  endpoint,
		Payload:   payload,
		RequestID: newRequestID(),
	}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// Context carries one request through a validation pass: the descriptor,
// the append-only path of validators already run, an optional skip list,
// and free-form metadata for diagnostics.
type Context struct {
	Request RequestDescriptor

	// Mode overrides the chain's configured execution mode for this pass
	// when non-empty.
	Mode Mode

	// Path records validator names in execution order. Append-only;
	// used for diagnostics and fail-fast assertions.
	Path []string

	// SkipValidators lists validator names excluded from this pass.
	SkipValidators []string

	Metadata  map[string]any
	StartTime time.Time

	cacheOnce sync.Once
	cacheKey  string
}

// NewContext wraps a descriptor for one validation pass.
func NewContext(req RequestDescriptor) *Context {
	if req.RequestID == "" {
		req.RequestID = newRequestID()
	}
	return &Context{
		Request:   req,
		Metadata:  make(map[string]any),
		StartTime: time.Now(),
	}
}

// ShouldSkip reports whether the named validator is excluded from this pass.
func (c *Context) ShouldSkip(name string) bool {
	for _, skip := range c.SkipValidators {
		if skip == name {
			return true
		}
	}
	return false
}

// AddToPath appends a validator name to the execution path.
func (c *Context) AddToPath(name string) {
	c.Path = append(c.Path, name)
}

// Identity returns the best available caller identity: user id, then
// session id, then client IP, then "anonymous". Rate limiting and cache
// keys are scoped by this value.
func (c *Context) Identity() string {
	switch {
	case c.Request.UserID != "":
		return c.Request.UserID
	case c.Request.SessionID != "":
		return c.Request.SessionID
	case c.Request.ClientIP != "":
		return c.Request.ClientIP
	default:
		return "anonymous"
	}
}

// CacheKey derives a stable memoization key for this pass from the
// endpoint, the caller identity and a fingerprint of the payload. The key
// is computed once and reused; safe under the parallel chain's fan-out.
func (c *Context) CacheKey() string {
	c.cacheOnce.Do(func() {
		c.cacheKey = fmt.Sprintf("%s|%s|%x", c.Request.Endpoint, c.Identity(), payloadFingerprint(c.Request.Payload))
	})
	return c.cacheKey
}

// payloadFingerprint hashes a canonical rendering of the payload. Map keys
// are sorted so that equal payloads produce equal fingerprints.
func payloadFingerprint(payload map[string]any) uint64 {
	h := fnv.New64a()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		if raw, err := json.Marshal(payload[k]); err == nil {
			h.Write(raw)
		}
	}
	return h.Sum64()
}
