package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/ai"
	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/GustavoLR548/news-relay-bot/internal/news"
	"github.com/GustavoLR548/news-relay-bot/internal/publish"
	"github.com/GustavoLR548/news-relay-bot/internal/schedule"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultRunTimeout bounds one run when no timeout is configured
	DefaultRunTimeout = 5 * time.Minute

	noticeTimeout = 30 * time.Second
)

// Config groups the collaborators of a Controller.
type Config struct {
	Selector  *schedule.Selector
	Schedule  []schedule.Entry
	Parsers   []news.SourceParser
	Rewriter  ai.Rewriter
	Publisher publish.Publisher
	Stats     *Stats

	ErrorNotice string
	RunTimeout  time.Duration
	Log         *zap.SugaredLogger

	// Now defaults to time.Now
	Now func() time.Time
}

// Controller runs the select, parse, rewrite, publish pipeline, one run at a time.
type Controller struct {
	selector  *schedule.Selector
	entries   []schedule.Entry
	parsers   map[string]news.SourceParser
	rewriter  ai.Rewriter
	publisher publish.Publisher
	stats     *Stats

	notice     string
	runTimeout time.Duration
	log        *zap.SugaredLogger
	now        func() time.Time

	running  atomic.Bool
	inflight sync.WaitGroup
}

// NewController validates cfg. Every scheduled source must have a parser.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Selector == nil {
		return nil, fmt.Errorf("schedule selector is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if len(cfg.Schedule) == 0 {
		return nil, fmt.Errorf("schedule cannot be empty")
	}

	parsers := make(map[string]news.SourceParser, len(cfg.Parsers))
	for _, p := range cfg.Parsers {
		if _, dup := parsers[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate parser %q", p.ID())
		}
		parsers[p.ID()] = p
	}

	var missing []error
	for _, source := range schedule.Sources(cfg.Schedule) {
		if _, ok := parsers[source]; !ok {
			missing = append(missing, fmt.Errorf("no parser for scheduled source %q", source))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	c := &Controller{
		selector:   cfg.Selector,
		entries:    cfg.Schedule,
		parsers:    parsers,
		rewriter:   cfg.Rewriter,
		publisher:  cfg.Publisher,
		stats:      cfg.Stats,
		notice:     cfg.ErrorNotice,
		runTimeout: cfg.RunTimeout,
		log:        logger.OrNop(cfg.Log),
		now:        cfg.Now,
	}
	if c.rewriter == nil {
		c.rewriter = ai.Passthrough{}
	}
	if c.stats == nil {
		c.stats = &Stats{}
	}
	if c.runTimeout <= 0 {
		c.runTimeout = DefaultRunTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Stats returns the run counters.
func (c *Controller) Stats() *Stats {
	return c.stats
}

// Running reports whether a run is in flight.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Tick runs the pipeline once unless a run is already in flight, in which
// case the tick is skipped and counted.
func (c *Controller) Tick() {
	if !c.running.CompareAndSwap(false, true) {
		c.skip()
		return
	}
	c.inflight.Add(1)
	defer c.release()

	c.runWithTimeout()
}

// Trigger starts a run in the background. It returns false when a run is
// already in flight.
func (c *Controller) Trigger() bool {
	if !c.running.CompareAndSwap(false, true) {
		c.skip()
		return false
	}
	c.inflight.Add(1)

	go func() {
		defer c.release()
		c.runWithTimeout()
	}()
	return true
}

// Wait blocks until runs started by Tick or Trigger have finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) release() {
	c.running.Store(false)
	c.inflight.Done()
}

func (c *Controller) skip() {
	c.log.Warn("Previous run still in progress, skipping tick")
	c.stats.Record(c.now(), "", OutcomeSkipped)
}

func (c *Controller) runWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), c.runTimeout)
	defer cancel()

	_, _ = c.RunOnce(ctx)
}

// RunOnce performs one pipeline run. Failures of the rewrite or publish step
// send the error notice; a failing notice is logged and swallowed. The
// returned error is the run failure, if any.
func (c *Controller) RunOnce(ctx context.Context) (outcome Outcome, err error) {
	startedAt := c.now()
	log := c.log.With("run_id", uuid.NewString())

	source, ok := c.selector.Select(c.entries, startedAt)
	if !ok {
		log.Warn("No scheduled source for the current time")
		c.stats.Record(startedAt, "", OutcomeNoSource)
		return OutcomeNoSource, nil
	}
	log = log.With("source", source)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
			outcome = c.fail(ctx, log, err)
		}
		c.stats.Record(startedAt, source, outcome)
		log.Infow("Run finished", "outcome", outcome, "duration", time.Since(startedAt).String())
	}()

	parser, ok := c.parsers[source]
	if !ok {
		err = fmt.Errorf("no parser for source %q", source)
		return c.fail(ctx, log, err), err
	}

	log.Info("Checking for new articles...")
	result := parser.Parse(ctx)

	switch result.Status {
	case news.StatusNone:
		log.Infof("No new articles: %s", result.Reason)
		return OutcomeNothingNew, nil
	case news.StatusFailed:
		log.Errorf("Could not check source: %v", result.Err)
		return OutcomeCheckFailed, nil
	}

	item := result.Item
	log.Infof("New article found: %s", item.Title)

	text, err := c.rewriter.Rewrite(ctx, result.Caption)
	if err != nil {
		err = fmt.Errorf("failed to rewrite caption: %w", err)
		return c.fail(ctx, log, err), err
	}

	if err := c.publisher.Publish(ctx, text, item.ImageURL); err != nil {
		err = fmt.Errorf("failed to publish: %w", err)
		return c.fail(ctx, log, err), err
	}

	log.Infof("Published: %s", item.Title)
	return OutcomePublished, nil
}

// fail logs err and sends the notice. The notice gets its own deadline so an
// expired run context does not suppress it.
func (c *Controller) fail(ctx context.Context, log *zap.SugaredLogger, err error) Outcome {
	log.Errorf("Run failed: %v", err)

	noticeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), noticeTimeout)
	defer cancel()

	if notifyErr := c.publisher.NotifyError(noticeCtx, c.notice); notifyErr != nil {
		log.Warnf("Failed to send error notice: %v", notifyErr)
	}
	return OutcomeRunFailed
}
