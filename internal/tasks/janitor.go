package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const DefaultSweepInterval = time.Hour

// SessionSweeper deletes sessions older than maxAge and reports how many were removed.
type SessionSweeper interface {
	SweepOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// SweepResult describes one sweep.
type SweepResult struct {
	At      time.Time
	Removed int64
	Err     error
}

type JanitorOpts struct {
	Sessions SessionSweeper
	Clock    shared.Clock
	Logger   *log.Logger
	Interval time.Duration      // defaults to [DefaultSweepInterval]
	MaxAge   time.Duration      // defaults to [models.SessionMaxAge]
	Updates  chan<- SweepResult // optional
}

// SessionJanitor periodically removes abandoned authorization sessions.
type SessionJanitor struct {
	sessions SessionSweeper
	clock    shared.Clock
	logger   *log.Logger
	interval time.Duration
	maxAge   time.Duration
	updates  chan<- SweepResult
}

func NewSessionJanitor(opts JanitorOpts) *SessionJanitor {
	if opts.Clock == nil {
		opts.Clock = shared.NewClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = models.SessionMaxAge
	}

	return &SessionJanitor{
		sessions: opts.Sessions,
		clock:    opts.Clock,
		logger:   shared.WithLogger(opts.Logger, "component", "janitor"),
		interval: opts.Interval,
		maxAge:   opts.MaxAge,
		updates:  opts.Updates,
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (j *SessionJanitor) Run(ctx context.Context) {
	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Debug("janitor started", "interval", j.interval, "max_age", j.maxAge)
	for {
		select {
		case <-ctx.Done():
			j.logger.Debug("janitor stopped")
			return
		case <-ticker.Chan():
			j.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes expired sessions immediately. Errors are logged and returned.
func (j *SessionJanitor) SweepOnce(ctx context.Context) (int64, error) {
	removed, err := j.sessions.SweepOlderThan(ctx, j.maxAge)
	if err != nil {
		j.logger.Error("session sweep failed", "error", err)
	} else if removed > 0 {
		j.logger.Info("swept expired sessions", "removed", removed)
	}

	j.report(SweepResult{At: j.clock.Now(), Removed: removed, Err: err})
	return removed, err
}

func (j *SessionJanitor) report(r SweepResult) {
	if j.updates == nil {
		return
	}
	select {
	case j.updates <- r:
	default:
	}
}
