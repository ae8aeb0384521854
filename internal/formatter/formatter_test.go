package formatter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	tu "github.com/desertthunder/nowplaying/internal/testing"
)

func testTrack(name string, images ...string) services.SpotifyTrack {
	track := services.SpotifyTrack{
		ID:         "id-" + name,
		Name:       name,
		Artists:    []services.SpotifyArtist{{Name: "Daft Punk"}, {Name: "Pharrell Williams"}},
		Album:      services.SpotifyAlbum{Name: "Random Access Memories"},
		DurationMS: 248000,
	}
	track.ExternalURLs.Spotify = "https://open.spotify.com/track/" + name
	for _, url := range images {
		track.Album.Images = append(track.Album.Images, services.SpotifyImage{URL: url})
	}
	return track
}

func TestViews(t *testing.T) {
	t.Run("NowPlaying", func(t *testing.T) {
		t.Run("Playing", func(t *testing.T) {
			track := testTrack("Get Lucky", "large.jpg", "medium.jpg", "small.jpg")
			view := NowPlaying("Jane Doe", &services.SpotifyCurrentlyPlaying{IsPlaying: true, ProgressMS: 42000, Item: &track})

			data, err := json.Marshal(view)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}

			var got map[string]any
			json.Unmarshal(data, &got)

			if got["isPlaying"] != true || got["playing"] != true || got["displayName"] != "Jane Doe" {
				t.Errorf("unexpected top-level fields: %v", got)
			}

			tr, ok := got["track"].(map[string]any)
			if !ok {
				t.Fatalf("expected track object, got %v", got["track"])
			}
			expected := map[string]any{
				"name":     "Get Lucky",
				"artist":   "Daft Punk, Pharrell Williams",
				"album":    "Random Access Memories",
				"albumArt": "large.jpg",
				"url":      "https://open.spotify.com/track/Get Lucky",
				"duration": float64(248000),
				"progress": float64(42000),
			}
			for key, want := range expected {
				if tr[key] != want {
					t.Errorf("expected track.%s=%v, got %v", key, want, tr[key])
				}
			}
		})

		t.Run("Paused", func(t *testing.T) {
			track := testTrack("Get Lucky")
			view := NowPlaying("Jane Doe", &services.SpotifyCurrentlyPlaying{IsPlaying: false, Item: &track})

			if !view.IsPlaying {
				t.Error("expected isPlaying with a loaded track")
			}
			if view.Playing == nil || *view.Playing {
				t.Error("expected playing=false")
			}
			if view.Track.AlbumArt != "" {
				t.Errorf("expected no album art, got %s", view.Track.AlbumArt)
			}
		})

		t.Run("Nothing Playing", func(t *testing.T) {
			data, _ := json.Marshal(NowPlaying("Jane Doe", nil))

			if string(data) != `{"isPlaying":false,"displayName":"Jane Doe"}` {
				t.Errorf("unexpected body: %s", data)
			}
		})
	})

	t.Run("TopTracks", func(t *testing.T) {
		view := TopTracks([]services.SpotifyTrack{
			testTrack("One", "l.jpg", "m.jpg", "s.jpg"),
			testTrack("Two", "only.jpg"),
			testTrack("Three"),
		})

		if len(view.Tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(view.Tracks))
		}
		if view.Tracks[0].AlbumArt != "s.jpg" {
			t.Errorf("expected third image, got %s", view.Tracks[0].AlbumArt)
		}
		if view.Tracks[1].AlbumArt != "only.jpg" {
			t.Errorf("expected fallback to first image, got %s", view.Tracks[1].AlbumArt)
		}
		if view.Tracks[2].AlbumArt != "" {
			t.Errorf("expected no image, got %s", view.Tracks[2].AlbumArt)
		}
		if view.Tracks[0].Artist != "Daft Punk, Pharrell Williams" {
			t.Errorf("unexpected artist: %s", view.Tracks[0].Artist)
		}
	})

	t.Run("RecentTracks", func(t *testing.T) {
		view := RecentTracks([]services.SpotifyPlayHistory{
			{Track: testTrack("Recent"), PlayedAt: "2025-06-01T11:00:00Z"},
		})

		if len(view.Tracks) != 1 || view.Tracks[0].Name != "Recent" {
			t.Errorf("unexpected tracks: %+v", view.Tracks)
		}
	})

	t.Run("Empty Lists Encode As Arrays", func(t *testing.T) {
		data, _ := json.Marshal(TopTracks(nil))
		if string(data) != `{"tracks":[]}` {
			t.Errorf("unexpected body: %s", data)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("NowPlayingToText", func(t *testing.T) {
		track := testTrack("Get Lucky")
		out := string(NowPlayingToText(NowPlaying("Jane", &services.SpotifyCurrentlyPlaying{ProgressMS: 42000, Item: &track})))

		if !strings.Contains(out, "Get Lucky - Daft Punk, Pharrell Williams (Random Access Memories)") {
			t.Errorf("unexpected output: %s", out)
		}
		if !strings.Contains(out, "[0:42 / 4:08]") {
			t.Errorf("expected progress and duration, got %s", out)
		}
		if !strings.Contains(out, "(paused)") {
			t.Errorf("expected paused marker, got %s", out)
		}

		idle := string(NowPlayingToText(NowPlaying("Jane", nil)))
		if idle != "Jane is not playing anything\n" {
			t.Errorf("unexpected idle output: %q", idle)
		}
	})

	t.Run("TrackListToText", func(t *testing.T) {
		out := string(TrackListToText("Top tracks", TopTracks([]services.SpotifyTrack{testTrack("One")})))

		if !strings.HasPrefix(out, "Top tracks:\n") {
			t.Errorf("missing title, got %s", out)
		}
		if !strings.Contains(out, "1. Daft Punk, Pharrell Williams - One") {
			t.Errorf("missing track line, got %s", out)
		}

		if out := string(TrackListToText("Recent", TrackListView{})); !strings.Contains(out, "(none)") {
			t.Errorf("expected empty marker, got %s", out)
		}
	})

	t.Run("CredentialsToCSV", func(t *testing.T) {
		creds := []*models.Credential{
			{
				Username:     "janedoe",
				ProviderID:   "1",
				DisplayName:  "Jane Doe",
				AccessToken:  "AT1",
				RefreshToken: "RT1",
				ExpiresAt:    tu.Epoch.Add(time.Hour),
				CreatedAt:    tu.Epoch,
			},
			{Username: "31abc", ProviderID: "31abc", AccessToken: "ATX", ExpiresAt: tu.Epoch, CreatedAt: tu.Epoch},
		}

		data, err := CredentialsToCSV(creds)
		if err != nil {
			t.Fatalf("CredentialsToCSV failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "Username,ProviderID,DisplayName,ExpiresAt,CreatedAt,Refreshable\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "janedoe,1,Jane Doe,2025-06-01T13:00:00Z,2025-06-01T12:00:00Z,true") {
			t.Errorf("CSV missing janedoe row, got: %s", output)
		}
		if !strings.Contains(output, "31abc,31abc,,2025-06-01T12:00:00Z,2025-06-01T12:00:00Z,false") {
			t.Errorf("CSV missing 31abc row, got: %s", output)
		}
		if strings.Contains(output, "AT1") || strings.Contains(output, "RT1") {
			t.Error("CSV must not contain tokens")
		}
	})

	t.Run("FormatDuration", func(t *testing.T) {
		tests := map[int]string{0: "0:00", 999: "0:00", 61000: "1:01", 248000: "4:08", -5: "0:00", 3600000: "60:00"}
		for ms, want := range tests {
			if got := FormatDuration(ms); got != want {
				t.Errorf("FormatDuration(%d): expected %s, got %s", ms, want, got)
			}
		}
	})
}
