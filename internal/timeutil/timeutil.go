// Package timeutil resolves timezones and renders localized timestamps.
// All instants that cross the wire are UTC; zone is only used for the
// human-facing "*_local" presentation fields.
package timeutil

import (
	"os"
	"time"
)

// LocalLayout is the wire format for localized timestamp strings.
const LocalLayout = "2006-01-02 15:04:05"

// Now returns the current instant in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// ResolveZone resolves an IANA zone name to a *time.Location, falling back
// to the host zone and finally to UTC when nothing can be resolved.
func ResolveZone(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if hostTZ := os.Getenv("TZ"); hostTZ != "" {
		if loc, err := time.LoadLocation(hostTZ); err == nil {
			return loc
		}
	}
	if time.Local != nil {
		// time.Local resolves to the host zone database entry when available;
		// it degrades to a fixed UTC offset (never an error) otherwise.
		if _, offset := time.Now().Zone(); offset != 0 || time.Local != time.UTC {
			return time.Local
		}
	}
	return time.UTC
}

// FormatLocal renders t in loc as "YYYY-MM-DD HH:MM:SS" (24-hour).
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(LocalLayout)
}
