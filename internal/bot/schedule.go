package bot

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// Schedule is the delay between two posts, either fixed or drawn from a
// normal distribution. Values are in minutes.
type Schedule struct {
	Mean     float64
	Stdev    float64
	Gaussian bool
}

// Fixed returns a schedule of exactly minutes.
func Fixed(minutes float64) *Schedule {
	return &Schedule{Mean: minutes}
}

// Normal returns a Gaussian schedule. A zero stdev defaults to mean/5.
func Normal(mean, stdev float64) *Schedule {
	if stdev == 0 {
		stdev = mean / 5
	}
	return &Schedule{Mean: mean, Stdev: stdev, Gaussian: true}
}

// Delay samples the next delay. Negative samples clamp to zero.
func (s *Schedule) Delay(rng *rand.Rand) time.Duration {
	minutes := s.Mean
	if s.Gaussian {
		minutes = s.Mean + s.Stdev*rng.NormFloat64()
	}
	if minutes < 0 {
		minutes = 0
	}
	return time.Duration(minutes * float64(time.Minute))
}

// Interval is the delay without jitter, used for state refresh.
func (s *Schedule) Interval() time.Duration {
	if s.Mean < 0 {
		return 0
	}
	return time.Duration(s.Mean * float64(time.Minute))
}

func (s *Schedule) String() string {
	if s.Gaussian {
		return fmt.Sprintf("~%gm (stdev %gm)", s.Mean, s.Stdev)
	}
	return fmt.Sprintf("%gm", s.Mean)
}

// ParseSchedule reads a schedule from a decoded config value. Accepted forms
// are a number of minutes, a mapping with "mean" and optional "stdev", and a
// one-element list holding such a mapping. A nil value means no schedule.
func ParseSchedule(v any) (*Schedule, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		if len(val) == 1 {
			if m, ok := asMap(val[0]); ok {
				return parseScheduleMap(m)
			}
		}
		return nil, fmt.Errorf("schedule list must hold exactly one mapping, got %v", val)
	default:
		if m, ok := asMap(v); ok {
			return parseScheduleMap(m)
		}
		minutes, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("schedule: %w", err)
		}
		if minutes < 0 {
			return nil, fmt.Errorf("schedule cannot be negative: %v", minutes)
		}
		return Fixed(minutes), nil
	}
}

func parseScheduleMap(m map[string]any) (*Schedule, error) {
	rawMean, ok := m["mean"]
	if !ok {
		return nil, fmt.Errorf("schedule mapping needs a mean, got %v", m)
	}
	mean, err := toFloat(rawMean)
	if err != nil {
		return nil, fmt.Errorf("schedule mean: %w", err)
	}
	var stdev float64
	if rawStdev, ok := m["stdev"]; ok && rawStdev != nil {
		if stdev, err = toFloat(rawStdev); err != nil {
			return nil, fmt.Errorf("schedule stdev: %w", err)
		}
	}
	if mean < 0 || stdev < 0 {
		return nil, fmt.Errorf("schedule cannot be negative: mean %v, stdev %v", mean, stdev)
	}
	return Normal(mean, stdev), nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
}
