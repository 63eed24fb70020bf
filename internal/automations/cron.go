package automations

import (
	"strconv"
	"strings"
	"time"
)

// IsCronDue reports whether a 5-field cron expression (minute, hour,
// day-of-month, month, day-of-week) is due at the given instant in the
// given IANA time zone. Malformed expressions and unknown time zones
// are never due rather than an error so that one bad definition cannot
// take down the scheduler tick.
//
// Day-of-month and day-of-week follow traditional cron semantics: when
// both fields are restricted (do not begin with `*`) the expression is
// due when either matches; otherwise both must match, which is
// trivially true for a bare `*`.
func IsCronDue(cronExpr string, timeZone string, instant time.Time) bool {
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 {
		return false
	}
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		return false
	}
	t := instant.In(location)

	if !cronFieldMatches(fields[0], t.Minute(), 0) {
		return false
	}
	if !cronFieldMatches(fields[1], t.Hour(), 0) {
		return false
	}
	if !cronFieldMatches(fields[3], int(t.Month()), 1) {
		return false
	}

	domField, dowField := fields[2], fields[4]
	domMatches := cronFieldMatches(domField, t.Day(), 1)
	dowMatches := cronWeekdayMatches(dowField, int(t.Weekday()))

	domRestricted := !strings.HasPrefix(domField, "*")
	dowRestricted := !strings.HasPrefix(dowField, "*")
	if domRestricted && dowRestricted {
		return domMatches || dowMatches
	}
	return domMatches && dowMatches
}

// cronWeekdayMatches tolerates both weekday numbering conventions:
// the raw 0-6 value (Sunday=0) and the 1-7 value (Sunday=7)
func cronWeekdayMatches(field string, rawWeekday int) bool {
	normalized := rawWeekday
	if normalized == 0 {
		normalized = 7
	}
	return cronFieldMatches(field, rawWeekday, 0) || cronFieldMatches(field, normalized, 0)
}

// cronFieldMatches evaluates one cron field against a value. A field
// is a comma-separated list of `*`, single integers, and `a-b` ranges,
// each optionally carrying a `/step` suffix. Unparseable parts simply
// do not match
func cronFieldMatches(field string, value int, fieldMin int) bool {
	for _, part := range strings.Split(field, ",") {
		if cronPartMatches(part, value, fieldMin) {
			return true
		}
	}
	return false
}

func cronPartMatches(part string, value int, fieldMin int) bool {
	base := part
	step := 1
	if slash := strings.Index(part, "/"); slash >= 0 {
		base = part[:slash]
		parsed, err := strconv.Atoi(part[slash+1:])
		if err != nil || parsed <= 0 {
			return false
		}
		step = parsed
	}

	var rangeStart, rangeEnd int
	switch {
	case base == "*":
		rangeStart, rangeEnd = fieldMin, 1<<31-1
	case strings.Contains(base, "-"):
		bounds := strings.SplitN(base, "-", 2)
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return false
		}
		end, err := strconv.Atoi(bounds[1])
		if err != nil {
			return false
		}
		rangeStart, rangeEnd = start, end
	default:
		single, err := strconv.Atoi(base)
		if err != nil {
			return false
		}
		rangeStart, rangeEnd = single, single
	}

	if value < rangeStart || value > rangeEnd {
		return false
	}
	return (value-rangeStart)%step == 0
}
