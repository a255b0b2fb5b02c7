package scheduler

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newTaskID produces "task-<unix-millis>-<7-char-random-alphanum>", per
// §4.D. The random suffix is the leading 7 hex characters of a fresh UUID4
// with its dashes stripped — itsddvn-goclaw declares google/uuid but never
// imports it; this is where it earns a real use in this module.
func newTaskID(now time.Time) string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "task-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + raw[:7]
}
