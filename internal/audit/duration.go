package audit

import (
	"regexp"
	"strconv"
	"strings"
)

var durationNumber = regexp.MustCompile(`\d+(\.\d+)?`)

// hoursPerDay converts day estimates to working hours.
const hoursPerDay = 8

// ParseDuration converts an estimate such as "4 hours", "2.5h", "3 days" or
// "30 min" to hours. Unknown input yields 0.
func ParseDuration(s string) float64 {
	s = strings.ToLower(s)
	m := durationNumber.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	switch {
	case strings.Contains(s, "day"):
		return v * hoursPerDay
	case strings.Contains(s, "min"):
		return v / 60
	default:
		return v
	}
}
