package tasks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/shared"
	tu "github.com/desertthunder/nowplaying/internal/testing"
	"github.com/jonboulle/clockwork"
)

type mockSweeper struct {
	mu      sync.Mutex
	calls   int
	maxAges []time.Duration
	errs    []error // consumed in order; nil once exhausted
	removed int64
}

func (m *mockSweeper) SweepOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.maxAges = append(m.maxAges, maxAge)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	return m.removed, nil
}

func (m *mockSweeper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func receive(t *testing.T, updates <-chan SweepResult) SweepResult {
	t.Helper()
	select {
	case r := <-updates:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sweep")
		return SweepResult{}
	}
}

func TestSessionJanitor(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		j := NewSessionJanitor(JanitorOpts{Sessions: &mockSweeper{}})

		if j.interval != time.Hour {
			t.Errorf("expected hourly interval, got %v", j.interval)
		}
		if j.maxAge != models.SessionMaxAge {
			t.Errorf("expected max age %v, got %v", models.SessionMaxAge, j.maxAge)
		}
	})

	t.Run("Sweeps On Each Tick", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(tu.Epoch)
		sweeper := &mockSweeper{removed: 3}
		updates := make(chan SweepResult, 4)
		j := NewSessionJanitor(JanitorOpts{Sessions: sweeper, Clock: clock, Updates: updates})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go j.Run(ctx)

		clock.BlockUntil(1)
		if n := sweeper.callCount(); n != 0 {
			t.Fatalf("expected no sweep before the first tick, got %d", n)
		}

		clock.Advance(time.Hour)
		r := receive(t, updates)
		if r.Err != nil || r.Removed != 3 {
			t.Errorf("unexpected result: %+v", r)
		}
		if !r.At.Equal(tu.Epoch.Add(time.Hour)) {
			t.Errorf("expected sweep at %v, got %v", tu.Epoch.Add(time.Hour), r.At)
		}

		clock.Advance(time.Hour)
		receive(t, updates)

		if n := sweeper.callCount(); n != 2 {
			t.Errorf("expected 2 sweeps, got %d", n)
		}
		for _, age := range sweeper.maxAges {
			if age != 10*time.Minute {
				t.Errorf("expected 10m cutoff, got %v", age)
			}
		}
	})

	t.Run("Failure Is Retried Next Tick", func(t *testing.T) {
		var buf bytes.Buffer
		clock := clockwork.NewFakeClockAt(tu.Epoch)
		sweeper := &mockSweeper{errs: []error{errors.New("database is locked")}, removed: 1}
		updates := make(chan SweepResult, 4)
		j := NewSessionJanitor(JanitorOpts{
			Sessions: sweeper,
			Clock:    clock,
			Logger:   shared.NewLogger(&buf),
			Updates:  updates,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go j.Run(ctx)

		clock.BlockUntil(1)
		clock.Advance(time.Hour)
		if r := receive(t, updates); r.Err == nil {
			t.Error("expected first sweep to fail")
		}

		clock.Advance(time.Hour)
		if r := receive(t, updates); r.Err != nil || r.Removed != 1 {
			t.Errorf("expected second sweep to succeed, got %+v", r)
		}

		if !strings.Contains(buf.String(), "session sweep failed") {
			t.Errorf("expected failure to be logged, got %q", buf.String())
		}
	})

	t.Run("Stops On Cancel", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(tu.Epoch)
		j := NewSessionJanitor(JanitorOpts{Sessions: &mockSweeper{}, Clock: clock})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			j.Run(ctx)
			close(done)
		}()

		clock.BlockUntil(1)
		cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("janitor did not stop")
		}
	})

	t.Run("Full Updates Channel Does Not Block", func(t *testing.T) {
		updates := make(chan SweepResult)
		j := NewSessionJanitor(JanitorOpts{Sessions: &mockSweeper{}, Updates: updates})

		if _, err := j.SweepOnce(context.Background()); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Against Session Repository", func(t *testing.T) {
		ctx := context.Background()
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create test database: %v", err)
		}
		shared.ConfigureDatabase(db, 1, 1)
		defer db.Close()
		if err := shared.RunMigrations(ctx, db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		clock := clockwork.NewFakeClockAt(tu.Epoch)
		sessions := repositories.NewSessionRepository(shared.Wrap(db), clock)
		j := NewSessionJanitor(JanitorOpts{Sessions: sessions, Clock: clock})

		sessions.Create(ctx, "old", "v1")
		clock.Advance(11 * time.Minute)
		sessions.Create(ctx, "new", "v2")
		clock.Advance(time.Minute)

		removed, err := j.SweepOnce(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if removed != 1 {
			t.Errorf("expected 1 session removed, got %d", removed)
		}
		if _, err := sessions.Get(ctx, "old"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected old session gone, got %v", err)
		}
		if _, err := sessions.Get(ctx, "new"); err != nil {
			t.Errorf("expected new session kept, got %v", err)
		}
	})
}
