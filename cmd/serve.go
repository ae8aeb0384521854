package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/nowplaying/internal/auth"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/desertthunder/nowplaying/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the web service and the session janitor until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		r.config.Server.Port = port
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	spotify, err := r.spotifyService()
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	sessions := repositories.NewSessionRepository(db, r.clock)
	credentials := repositories.NewCredentialRepository(db)

	janitor := tasks.NewSessionJanitor(tasks.JanitorOpts{Sessions: sessions, Clock: r.clock, Logger: r.logger})
	janitor.SweepOnce(ctx)
	go janitor.Run(ctx)

	srv := server.New(server.Opts{
		Config: r.config.Server,
		Flow: auth.NewFlow(auth.FlowOpts{
			Sessions:    sessions,
			Credentials: credentials,
			Provider:    spotify,
			Clock:       r.clock,
			Logger:      r.logger,
		}),
		Tokens:      r.tokenManager(credentials, spotify),
		Credentials: credentials,
		Music:       spotify,
		Clock:       r.clock,
		Logger:      r.logger,
	})

	r.writePlainHeader("nowplaying")
	r.writePlain("Server running on http://%s\n", r.config.Server.Addr())
	r.writePlain("%s\n", styles.Help(fmt.Sprintf("Setup your account at http://localhost:%d", r.config.Server.Port)))

	return srv.Run(ctx)
}
