package bot

import (
	"sync"
	"time"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomePublished   Outcome = "published"
	OutcomeNothingNew  Outcome = "nothing_new"
	OutcomeCheckFailed Outcome = "check_failed"
	OutcomeRunFailed   Outcome = "run_failed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeNoSource    Outcome = "no_source"
)

// Stats counts runs by outcome. Safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	published   int64
	nothingNew  int64
	checkFailed int64
	runFailed   int64
	skipped     int64
	noSource    int64

	lastRunAt   time.Time
	lastSource  string
	lastOutcome Outcome
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Published   int64     `json:"published"`
	NothingNew  int64     `json:"nothing_new"`
	CheckFailed int64     `json:"check_failed"`
	RunFailed   int64     `json:"run_failed"`
	Skipped     int64     `json:"skipped"`
	NoSource    int64     `json:"no_source"`
	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	LastSource  string    `json:"last_source,omitempty"`
	LastOutcome Outcome   `json:"last_outcome,omitempty"`
}

// Record counts one finished run. Skipped ticks do not replace the last run.
func (s *Stats) Record(at time.Time, source string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch outcome {
	case OutcomePublished:
		s.published++
	case OutcomeNothingNew:
		s.nothingNew++
	case OutcomeCheckFailed:
		s.checkFailed++
	case OutcomeRunFailed:
		s.runFailed++
	case OutcomeSkipped:
		s.skipped++
		return
	case OutcomeNoSource:
		s.noSource++
	}

	s.lastRunAt = at
	s.lastSource = source
	s.lastOutcome = outcome
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		Published:   s.published,
		NothingNew:  s.nothingNew,
		CheckFailed: s.checkFailed,
		RunFailed:   s.runFailed,
		Skipped:     s.skipped,
		NoSource:    s.noSource,
		LastRunAt:   s.lastRunAt,
		LastSource:  s.lastSource,
		LastOutcome: s.lastOutcome,
	}
}
