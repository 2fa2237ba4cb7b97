package bot

import (
	"fmt"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner fires Controller.Tick on a cron schedule.
type Runner struct {
	cron *cron.Cron
	ctrl *Controller
	log  *zap.SugaredLogger
}

// NewRunner registers ctrl.Tick under spec (standard five-field cron syntax)
// evaluated in loc.
func NewRunner(ctrl *Controller, spec string, loc *time.Location, log *zap.SugaredLogger) (*Runner, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	log = logger.OrNop(log)
	adapter := logger.CronAdapter{Log: log}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	if _, err := c.AddFunc(spec, ctrl.Tick); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	return &Runner{cron: c, ctrl: ctrl, log: log}, nil
}

// Start begins firing ticks in the background.
func (r *Runner) Start() {
	r.cron.Start()
	if next := r.Next(); !next.IsZero() {
		r.log.Infof("Scheduler started, next run at %s", next.Format(time.RFC3339))
	}
}

// Next returns the next scheduled tick, or the zero time before Start.
func (r *Runner) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the schedule and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.ctrl.Wait()
	r.log.Info("Scheduler stopped")
}
