package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var timePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ParseTime converts "H:MM" or "HH:MM" (24-hour) into minutes since midnight.
func ParseTime(timeStr string) (int, error) {
	if timeStr == "" {
		return 0, fmt.Errorf("time cannot be empty")
	}

	m := timePattern.FindStringSubmatch(strings.TrimSpace(timeStr))
	if m == nil {
		return 0, fmt.Errorf("invalid time format %q, use HH:MM (24-hour format, e.g., 09:00, 13:30)", timeStr)
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, nil
}

// ValidateTimes validates the time list of a single entry.
func ValidateTimes(times []string) error {
	if len(times) == 0 {
		return fmt.Errorf("schedule entry has no times")
	}

	if len(times) > 24*60 {
		return fmt.Errorf("too many schedule times (max %d)", 24*60)
	}

	seen := make(map[int]string, len(times))
	for _, timeStr := range times {
		minutes, err := ParseTime(timeStr)
		if err != nil {
			return err
		}

		if prev, dup := seen[minutes]; dup {
			return fmt.Errorf("duplicate time in schedule: %s and %s", prev, timeStr)
		}
		seen[minutes] = timeStr
	}

	return nil
}

// Validate checks every entry. Overlapping times across different entries are
// allowed; only malformed input is rejected.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("schedule is empty")
	}

	for i, entry := range entries {
		if strings.TrimSpace(entry.Source) == "" {
			return fmt.Errorf("schedule entry %d: source cannot be empty", i)
		}
		if err := ValidateTimes(entry.Times); err != nil {
			return fmt.Errorf("schedule entry %d (%s): %w", i, entry.Source, err)
		}
	}

	return nil
}
