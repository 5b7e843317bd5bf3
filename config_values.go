package validate

import (
	"reflect"
	"time"

	"github.com/golobby/cast"
)

// Helpers for reading free-form validator config maps. Values arrive from
// YAML, TOML, JSON or hand-built maps, so each accessor tolerates the
// scalar types those decoders produce and falls back to string conversion
// for values fed in as text (e.g. from environment overrides).

func configBool(config map[string]any, key string, def bool) bool {
	v, ok := config[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if converted, err := cast.FromType(t, reflect.TypeOf(false)); err == nil {
			if b, ok := converted.(bool); ok {
				return b
			}
		}
	}
	return def
}

func configInt(config map[string]any, key string, def int) int {
	v, ok := config[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if converted, err := cast.FromType(t, reflect.TypeOf(0)); err == nil {
			if i, ok := converted.(int); ok {
				return i
			}
		}
	}
	return def
}

func configFloat(config map[string]any, key string, def float64) float64 {
	v, ok := config[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if converted, err := cast.FromType(t, reflect.TypeOf(float64(0))); err == nil {
			if f, ok := converted.(float64); ok {
				return f
			}
		}
	}
	return def
}

func configString(config map[string]any, key, def string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func configStrings(config map[string]any, key string, def []string) []string {
	v, ok := config[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

// configDuration reads a duration given either as a time.Duration, a
// duration string ("30s"), or a bare number of seconds.
func configDuration(config map[string]any, key string, def time.Duration) time.Duration {
	v, ok := config[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case time.Duration:
		return t
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d
		}
	case int:
		return time.Duration(t) * time.Second
	case int64:
		return time.Duration(t) * time.Second
	case float64:
		return time.Duration(t * float64(time.Second))
	}
	return def
}
