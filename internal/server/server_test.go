package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/auth"
	"github.com/desertthunder/nowplaying/internal/repositories"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	tu "github.com/desertthunder/nowplaying/internal/testing"
	"github.com/desertthunder/nowplaying/internal/tokens"
	"github.com/jonboulle/clockwork"
)

func newTestServer(t *testing.T) (*Server, *tu.FakeProvider, clockwork.FakeClock) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	fp := tu.NewFakeProvider(t)
	spotify, err := services.NewSpotifyService(services.SpotifyOpts{
		Credentials: shared.SpotifyConfig{ClientID: "test_client_id", RedirectURI: "http://localhost:3000/callback"},
		Endpoints:   services.Endpoints{AuthURL: fp.AuthURL(), TokenURL: fp.TokenURL(), APIURL: fp.APIURL()},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	clock := clockwork.NewFakeClockAt(tu.Epoch)
	logger := shared.NewLogger(io.Discard)
	sqlxDB := shared.Wrap(db)
	sessions := repositories.NewSessionRepository(sqlxDB, clock)
	credentials := repositories.NewCredentialRepository(sqlxDB)

	srv := New(Opts{
		Config: shared.ServerConfig{Host: "127.0.0.1", Port: 0, RequestsPerSecond: 100, Burst: 100},
		Flow: auth.NewFlow(auth.FlowOpts{
			Sessions: sessions, Credentials: credentials, Provider: spotify, Clock: clock, Logger: logger,
		}),
		Tokens:      tokens.NewManager(tokens.ManagerOpts{Credentials: credentials, Provider: spotify, Clock: clock, Logger: logger}),
		Credentials: credentials,
		Music:       spotify,
		Clock:       clock,
		Logger:      logger,
	})
	return srv, fp, clock
}

func TestServer(t *testing.T) {
	t.Run("Login To Now Playing", func(t *testing.T) {
		srv, fp, clock := newTestServer(t)
		h := srv.Handler()

		login := serve(h, "/auth/login")
		if login.Code != http.StatusFound {
			t.Fatalf("expected 302 from login, got %d", login.Code)
		}
		if login.Header().Get("X-Request-ID") == "" {
			t.Error("expected request id on every response")
		}

		location, err := url.Parse(login.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid location: %v", err)
		}
		state := location.Query().Get("state")
		if !strings.HasPrefix(location.String(), fp.AuthURL()) || state == "" {
			t.Fatalf("unexpected location %s", location)
		}

		callback := serve(h, "/callback?code=C&state="+state)
		if callback.Code != http.StatusFound {
			t.Fatalf("expected 302 from callback, got %d: %s", callback.Code, callback.Body.String())
		}
		if loc := callback.Header().Get("Location"); loc != "/success?username=janedoe" {
			t.Errorf("unexpected location %s", loc)
		}

		if replay := serve(h, "/callback?code=C&state="+state); replay.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", replay.Code)
		}

		fp.SetAPI("/v1/me/player/currently-playing", http.StatusNoContent, nil)
		rec := serve(h, "/api/nowplaying/janedoe")
		if got := strings.TrimSpace(rec.Body.String()); got != `{"isPlaying":false,"displayName":"Jane Doe"}` {
			t.Errorf("unexpected now playing body %s", got)
		}

		clock.Advance(3590 * time.Second)
		serve(h, "/api/nowplaying/janedoe")

		if n := fp.GrantCount("refresh_token"); n != 1 {
			t.Errorf("expected one refresh near expiry, got %d", n)
		}
		bearers := fp.Bearers()
		if last := bearers[len(bearers)-1]; last != "AT2" {
			t.Errorf("expected refreshed token to be used, got %s", last)
		}
	})

	t.Run("Unknown State", func(t *testing.T) {
		srv, fp, _ := newTestServer(t)

		rec := serve(srv.Handler(), "/callback?code=C&state=nope")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if n := len(fp.TokenRequests()); n != 0 {
			t.Errorf("expected no provider calls, got %d", n)
		}
	})

	t.Run("Unknown User", func(t *testing.T) {
		srv, _, _ := newTestServer(t)

		if rec := serve(srv.Handler(), "/api/nowplaying/ghost"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Pages", func(t *testing.T) {
		srv, _, _ := newTestServer(t)

		for _, path := range []string{"/", "/success?username=janedoe", "/janedoe"} {
			if rec := serve(srv.Handler(), path); rec.Code != http.StatusOK {
				t.Errorf("%s: expected 200, got %d", path, rec.Code)
			}
		}
	})

	t.Run("Serve Shuts Down On Cancel", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln) }()

		var resp *http.Response
		for range 50 {
			resp, err = http.Get("http://" + ln.Addr().String() + "/")
			if err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		if err != nil {
			t.Fatalf("server never answered: %v", err)
		}
		resp.Body.Close()

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})
}

