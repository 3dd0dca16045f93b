// config/duration.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseDurationFlexible accepts strings like "90s"/"2m", numeric seconds, or time.Duration.
// Returns def on empty/unknown types; returns def + error on invalid or non-positive values.
func parseDurationFlexible(raw any, def time.Duration) (time.Duration, error) {
	var d time.Duration
	switch t := raw.(type) {
	case time.Duration:
		d = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		if parsed, err := time.ParseDuration(s); err == nil {
			d = parsed
		} else if n, err := strconv.ParseFloat(s, 64); err == nil {
			// plain seconds in string form, e.g. "120" or "2.5"
			d = time.Duration(n * float64(time.Second))
		} else {
			return def, fmt.Errorf("cannot parse duration %q", s)
		}
	case int:
		d = time.Duration(t) * time.Second
	case int32:
		d = time.Duration(t) * time.Second
	case int64:
		d = time.Duration(t) * time.Second
	case float64:
		d = time.Duration(t * float64(time.Second))
	default:
		// nil, bool, etc.
		return def, nil
	}
	if d <= 0 {
		return def, fmt.Errorf("duration must be >0")
	}
	return d, nil
}
