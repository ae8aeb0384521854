package main

import (
	"context"

	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SessionsSweep deletes abandoned authorization sessions once.
func (r *Runner) SessionsSweep(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	janitor := tasks.NewSessionJanitor(tasks.JanitorOpts{
		Sessions: repositories.NewSessionRepository(db, r.clock),
		Clock:    r.clock,
		Logger:   r.logger,
	})

	removed, err := janitor.SweepOnce(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s removed %d expired session(s)\n", styles.OK("✓"), removed)
}
