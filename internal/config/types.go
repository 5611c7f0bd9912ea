package config

import (
	"fmt"
	"strconv"
	"time"
)

// BotConfig is one bot as described by its bot.yaml, with default.yaml
// merged underneath.
type BotConfig struct {
	Name      string `validate:"required"`
	Generator string `validate:"required"`
	Directory string `validate:"required"`

	// Schedule and StateUpdateSchedule are left as decoded YAML; they are
	// parsed into schedules when the bot is built.
	Schedule            any
	StateUpdateSchedule any

	// Publish maps a service name to its publisher block.
	Publish map[string]Options

	// Options is the whole merged mapping, for generator-specific keys.
	Options Options
}

// Options is a decoded YAML mapping with typed accessors.
type Options map[string]any

// String returns the value at key as a string, or def when unset.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the value at key as an int, or def when unset or not a number.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float returns the value at key as a float64, or def.
func (o Options) Float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the value at key as a bool, or def.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Duration reads key as a Go duration string ("90s") or a number of minutes.
func (o Options) Duration(key string, def time.Duration) time.Duration {
	switch v := o[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int, int64, float64:
		return time.Duration(o.Float(key, 0) * float64(time.Minute))
	}
	return def
}

// Strings returns the value at key as a list of strings. A single string
// becomes a one-element list.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

// Require returns the string at key or an ErrConfiguration error naming it.
func (o Options) Require(key string) (string, error) {
	s := o.String(key, "")
	if s == "" {
		return "", fmt.Errorf("%w: missing required setting %q", ErrConfiguration, key)
	}
	return s, nil
}
