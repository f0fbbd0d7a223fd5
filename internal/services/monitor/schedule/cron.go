package schedule

import (
	"strconv"
	"strings"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

const (
	everyMinute = "* * * * *"
	daily       = "0 0 * * *"
	tzPrefix    = "CRON_TZ="
)

// IntervalToCron maps a check interval onto a cadence expression. Intervals of an hour
// or more are floored to whole hours and a day or more runs once daily.
func IntervalToCron(minutes int) string {
	switch {
	case minutes <= 1:
		return everyMinute
	case minutes < 60:
		return "*/" + strconv.Itoa(minutes) + " * * * *"
	case minutes/60 < 24:
		return "0 */" + strconv.Itoa(minutes/60) + " * * *"
	default:
		return daily
	}
}

// CronToInterval recognizes "* * * * *" and "*/N * * * *". Anything else is reported as
// one minute with exact=false.
func CronToInterval(expr string) (minutes int, exact bool) {
	parts := strings.Fields(stripTimezone(expr))
	if len(parts) != 5 {
		return 1, false
	}
	rest := strings.Join(parts[1:], " ")
	if rest != "* * * *" {
		return 1, false
	}
	switch m := parts[0]; {
	case m == "*":
		return 1, true
	case strings.HasPrefix(m, "*/"):
		n, err := strconv.Atoi(m[2:])
		if err != nil || n < 1 {
			return 1, false
		}
		return n, true
	default:
		return 1, false
	}
}

// WithTimezone prefixes expr with CRON_TZ unless tz is empty or UTC.
func WithTimezone(expr, tz string) string {
	expr = stripTimezone(expr)
	if tz == "" || strings.EqualFold(tz, "UTC") {
		return expr
	}
	return tzPrefix + tz + " " + expr
}

func CronTimezone(expr string) string {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, tzPrefix) {
		return "UTC"
	}
	tz, _, _ := strings.Cut(expr[len(tzPrefix):], " ")
	if tz == "" {
		return "UTC"
	}
	return tz
}

func stripTimezone(expr string) string {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, tzPrefix) {
		return expr
	}
	_, rest, _ := strings.Cut(expr, " ")
	return strings.TrimSpace(rest)
}

// Validate parses expr with the standard five-field parser, CRON_TZ included.
func Validate(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}
