package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

// UsersList prints every stored credential without its tokens.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	creds, err := repositories.NewCredentialRepository(db).List(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("csv") {
		data, err := formatter.CredentialsToCSV(creds)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	r.writePlainHeader(fmt.Sprintf("Users (%d)", len(creds)))
	if len(creds) == 0 {
		return r.writePlain("%s\n", styles.Help("No users yet. Run 'nowplaying serve' and log in."))
	}
	for _, c := range creds {
		r.writePlain("%-24s %-24s %s\n", c.Username, c.DisplayName, r.tokenStatus(c))
	}
	return nil
}

func (r *Runner) tokenStatus(c *models.Credential) string {
	now := r.clock.Now()
	switch {
	case !c.NeedsRefresh(now, models.RefreshSkew):
		return styles.OK("valid until " + c.ExpiresAt.Local().Format("15:04:05"))
	case c.CanRefresh():
		return styles.Warn("refresh due")
	default:
		return styles.Err("expired, no refresh token")
	}
}

// UsersShow prints what a user is playing now plus their top and recent tracks.
func (r *Runner) UsersShow(ctx context.Context, cmd *cli.Command) error {
	username := cmd.StringArg("username")
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	spotify, err := r.spotifyService()
	if err != nil {
		return err
	}

	credentials := repositories.NewCredentialRepository(db)
	cred, err := credentials.Get(ctx, username)
	if err != nil {
		return err
	}

	token, err := r.tokenManager(credentials, spotify).GetValidAccessToken(ctx, username)
	if err != nil {
		return err
	}

	playback, err := spotify.CurrentlyPlaying(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to fetch now playing: %w", err)
	}
	top, err := spotify.TopTracks(ctx, token, 5, "short_term")
	if err != nil {
		return fmt.Errorf("failed to fetch top tracks: %w", err)
	}
	recent, err := spotify.RecentlyPlayed(ctx, token, 5)
	if err != nil {
		return fmt.Errorf("failed to fetch recent tracks: %w", err)
	}

	nowPlaying := formatter.NowPlaying(cred.DisplayName, playback)
	topTracks := formatter.TopTracks(top)
	recentTracks := formatter.RecentTracks(recent)

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"nowPlaying": nowPlaying,
			"topTracks":  topTracks.Tracks,
			"recent":     recentTracks.Tracks,
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(cred.DisplayName)
	r.writePlain("%s", formatter.NowPlayingToText(nowPlaying))
	r.writePlainln("%s", formatter.TrackListToText("Top tracks", topTracks))
	r.writePlain("%s", formatter.TrackListToText("Recently played", recentTracks))
	return nil
}

// UsersToken prints a usable access token for scripting.
func (r *Runner) UsersToken(ctx context.Context, cmd *cli.Command) error {
	username := cmd.StringArg("username")
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	spotify, err := r.spotifyService()
	if err != nil {
		return err
	}

	manager := r.tokenManager(repositories.NewCredentialRepository(db), spotify)

	var token string
	if cmd.Bool("refresh") {
		token, err = manager.Refresh(ctx, username)
	} else {
		token, err = manager.GetValidAccessToken(ctx, username)
	}
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", token)
}

// UsersDelete removes a stored credential.
func (r *Runner) UsersDelete(ctx context.Context, cmd *cli.Command) error {
	username := cmd.StringArg("username")
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewCredentialRepository(db).Delete(ctx, username); err != nil {
		return err
	}

	r.logger.Info("credential deleted", "username", username)
	return r.writePlain("%s deleted %s\n", styles.OK("✓"), username)
}
