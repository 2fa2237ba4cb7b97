package schedule

import (
	"time"
)

// Entry pairs a source identifier with the times of day it should run.
type Entry struct {
	Source string   `yaml:"source"`
	Times  []string `yaml:"times"`
}

// Selector picks which source runs on a tick. It holds no state besides the
// reference timezone used to read the wall clock.
type Selector struct {
	location *time.Location
}

// NewSelector creates a selector that interprets times of day in loc.
// A nil loc means UTC.
func NewSelector(loc *time.Location) *Selector {
	if loc == nil {
		loc = time.UTC
	}
	return &Selector{location: loc}
}

// Location returns the reference timezone.
func (s *Selector) Location() *time.Location {
	return s.location
}

// Select returns the source whose scheduled time is the latest one not after
// now. When every time lies later in the day, the earliest upcoming time wins.
// Ties go to the entry listed first; after Merge that is the source that first
// appears in the input, wherever its tied time was listed. Unparseable times are ignored; ok is false
// only when no entry carries a usable time.
func (s *Selector) Select(entries []Entry, now time.Time) (source string, ok bool) {
	local := now.In(s.location)
	nowMinutes := local.Hour()*60 + local.Minute()

	pastBest, futureBest := -1, -1
	var pastSource, futureSource string

	for _, entry := range entries {
		for _, raw := range entry.Times {
			minutes, err := ParseTime(raw)
			if err != nil {
				continue
			}

			if minutes <= nowMinutes {
				if minutes > pastBest {
					pastBest = minutes
					pastSource = entry.Source
				}
				continue
			}

			if futureBest == -1 || minutes < futureBest {
				futureBest = minutes
				futureSource = entry.Source
			}
		}
	}

	if pastBest >= 0 {
		return pastSource, true
	}
	if futureBest >= 0 {
		return futureSource, true
	}
	return "", false
}
