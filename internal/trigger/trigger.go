// Package trigger computes and validates the three trigger families a
// task can use: interval, cron, and single date. next_fire is a pure
// function of (trigger, reference instant, zone, previously-planned
// instant) — it never reads the clock itself, so callers control what
// "now" means for a given computation.
package trigger

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Type enumerates the supported trigger families.
type Type string

const (
	Interval Type = "interval"
	Cron     Type = "cron"
	Date     Type = "date"
)

func (t Type) Valid() bool {
	switch t {
	case Interval, Cron, Date:
		return true
	default:
		return false
	}
}

// IntervalConfig is the trigger_config shape for Interval triggers.
// At least one field must be set and positive; the sum must be > 0.
type IntervalConfig struct {
	Seconds *float64 `json:"seconds,omitempty"`
	Minutes *float64 `json:"minutes,omitempty"`
	Hours   *float64 `json:"hours,omitempty"`
	Days    *float64 `json:"days,omitempty"`
}

// Duration returns the total interval as a time.Duration, rounded to whole
// milliseconds with a 1ms floor.
func (c IntervalConfig) Duration() time.Duration {
	var total float64
	if c.Seconds != nil {
		total += *c.Seconds
	}
	if c.Minutes != nil {
		total += *c.Minutes * 60
	}
	if c.Hours != nil {
		total += *c.Hours * 3600
	}
	if c.Days != nil {
		total += *c.Days * 86400
	}
	ms := int64(math.Round(total * 1000))
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// CronConfig is the trigger_config shape for Cron triggers.
type CronConfig struct {
	Expression string `json:"expression"`
}

// DateConfig is the trigger_config shape for Date triggers. RunDate is
// always present after registration-time materialization (§4.B); any
// Delay* fields given at registration are kept in the stored config next
// to it, and NextFire reads only RunDate.
type DateConfig struct {
	RunDate      *time.Time `json:"run_date,omitempty"`
	DelaySeconds *float64   `json:"delay_seconds,omitempty"`
	DelayMinutes *float64   `json:"delay_minutes,omitempty"`
	DelayHours   *float64   `json:"delay_hours,omitempty"`
	DelayDays    *float64   `json:"delay_days,omitempty"`
}

func (c DateConfig) delay() (time.Duration, bool) {
	var total float64
	var has bool
	if c.DelaySeconds != nil {
		total += *c.DelaySeconds
		has = true
	}
	if c.DelayMinutes != nil {
		total += *c.DelayMinutes * 60
		has = true
	}
	if c.DelayHours != nil {
		total += *c.DelayHours * 3600
		has = true
	}
	if c.DelayDays != nil {
		total += *c.DelayDays * 86400
		has = true
	}
	return time.Duration(total * float64(time.Second)), has
}

// ValidationError marks a malformed trigger definition, surfaced to the
// RPC caller verbatim rather than persisted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ValidateInterval checks the registration-time shape: only the four
// allowed keys, all positive, total > 0.
func ValidateInterval(raw map[string]interface{}) (IntervalConfig, error) {
	var cfg IntervalConfig
	allowed := map[string]**float64{
		"seconds": &cfg.Seconds,
		"minutes": &cfg.Minutes,
		"hours":   &cfg.Hours,
		"days":    &cfg.Days,
	}
	for key, val := range raw {
		slot, ok := allowed[key]
		if !ok {
			return cfg, invalid("interval trigger_config has unknown key %q", key)
		}
		num, ok := toFloat(val)
		if !ok {
			return cfg, invalid("interval trigger_config.%s must be a number", key)
		}
		if num <= 0 {
			return cfg, invalid("interval trigger_config.%s must be > 0", key)
		}
		v := num
		*slot = &v
	}
	if len(raw) == 0 {
		return cfg, invalid("interval trigger_config must specify at least one of seconds/minutes/hours/days")
	}
	return cfg, nil
}

// ValidateCron checks the expression passes five-field cron syntax.
func ValidateCron(raw map[string]interface{}) (CronConfig, error) {
	var cfg CronConfig
	for key, val := range raw {
		if key != "expression" {
			return cfg, invalid("cron trigger_config has unknown key %q", key)
		}
		s, ok := val.(string)
		if !ok {
			return cfg, invalid("cron trigger_config.expression must be a string")
		}
		cfg.Expression = s
	}
	if cfg.Expression == "" {
		return cfg, invalid("cron trigger_config.expression is required")
	}
	if len(strings.Fields(cfg.Expression)) != 5 {
		return cfg, invalid("invalid cron expression: %s (want five fields)", cfg.Expression)
	}
	gx := gronx.New()
	if !gx.IsValid(cfg.Expression) {
		return cfg, invalid("invalid cron expression: %s", cfg.Expression)
	}
	return cfg, nil
}

// ValidateAndMaterializeDate checks the registration-time shape and
// materializes an absolute run_date: if run_date is absent it is now +
// delay, and a config with neither run_date nor a delay_* field is
// rejected; if run_date is already in the past it is recomputed from
// now + delay (or now + 1s if no delay was given), per §4.B.
func ValidateAndMaterializeDate(raw map[string]interface{}, now time.Time) (DateConfig, error) {
	var cfg DateConfig
	for key, val := range raw {
		switch key {
		case "run_date":
			s, ok := val.(string)
			if !ok {
				return cfg, invalid("date trigger_config.run_date must be an ISO-8601 string")
			}
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return cfg, invalid("date trigger_config.run_date is not a valid ISO-8601 timestamp: %v", err)
			}
			ts = ts.UTC()
			cfg.RunDate = &ts
		case "delay_seconds":
			v, ok := toFloat(val)
			if !ok || v < 0 {
				return cfg, invalid("date trigger_config.delay_seconds must be a non-negative number")
			}
			cfg.DelaySeconds = &v
		case "delay_minutes":
			v, ok := toFloat(val)
			if !ok || v < 0 {
				return cfg, invalid("date trigger_config.delay_minutes must be a non-negative number")
			}
			cfg.DelayMinutes = &v
		case "delay_hours":
			v, ok := toFloat(val)
			if !ok || v < 0 {
				return cfg, invalid("date trigger_config.delay_hours must be a non-negative number")
			}
			cfg.DelayHours = &v
		case "delay_days":
			v, ok := toFloat(val)
			if !ok || v < 0 {
				return cfg, invalid("date trigger_config.delay_days must be a non-negative number")
			}
			cfg.DelayDays = &v
		default:
			return cfg, invalid("date trigger_config has unknown key %q", key)
		}
	}
	if cfg.RunDate == nil {
		delay, has := cfg.delay()
		if !has {
			return cfg, invalid("date trigger_config requires run_date or a delay_* field")
		}
		ts := now.Add(delay)
		cfg.RunDate = &ts
		return cfg, nil
	}
	if !cfg.RunDate.After(now) {
		delay, has := cfg.delay()
		if !has {
			delay = time.Second
		}
		ts := now.Add(delay)
		cfg.RunDate = &ts
	}
	return cfg, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// NextFire computes the next fire instant for trigger (typ, config) given
// a reference instant, a zone (used only for cron), and a previously
// planned instant (if any, preserved unchanged when still in the future
// so a restart doesn't reset an in-progress tick schedule).
func NextFire(typ Type, config json.RawMessage, reference time.Time, zone *time.Location, previouslyPlanned *time.Time) (*time.Time, error) {
	if previouslyPlanned != nil && previouslyPlanned.After(reference) {
		t := *previouslyPlanned
		return &t, nil
	}

	switch typ {
	case Interval:
		var cfg IntervalConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("decode interval trigger_config: %w", err)
		}
		next := reference.Add(cfg.Duration())
		return &next, nil

	case Cron:
		var cfg CronConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("decode cron trigger_config: %w", err)
		}
		if zone == nil {
			zone = time.UTC
		}
		localRef := reference.In(zone)
		next, err := gronx.NextTickAfter(cfg.Expression, localRef, false)
		if err != nil {
			return nil, fmt.Errorf("compute next cron tick: %w", err)
		}
		nextUTC := next.UTC()
		return &nextUTC, nil

	case Date:
		var cfg DateConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("decode date trigger_config: %w", err)
		}
		if cfg.RunDate == nil || !cfg.RunDate.After(reference) {
			return nil, nil
		}
		t := *cfg.RunDate
		return &t, nil

	default:
		return nil, fmt.Errorf("unknown trigger type %q", typ)
	}
}
