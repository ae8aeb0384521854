// package formatter shapes Spotify payloads and stored credentials into JSON views, CSV and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
)

// TrackView is the track of a now-playing response.
type TrackView struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	AlbumArt string `json:"albumArt,omitempty"`
	URL      string `json:"url"`
	Duration int    `json:"duration"`
	Progress int    `json:"progress"`
}

// NowPlayingView is the body of GET /api/nowplaying/{username}.
//
// When nothing is playing only IsPlaying and DisplayName are set.
type NowPlayingView struct {
	IsPlaying   bool       `json:"isPlaying"`
	DisplayName string     `json:"displayName"`
	Track       *TrackView `json:"track,omitempty"`
	Playing     *bool      `json:"playing,omitempty"`
}

// TrackSummary is one entry of a top or recent track list.
type TrackSummary struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt,omitempty"`
}

// TrackListView is the body of GET /api/toptracks/{username} and GET /api/recent/{username}.
type TrackListView struct {
	Tracks []TrackSummary `json:"tracks"`
}

// NowPlaying builds the now-playing view. A nil playback means nothing is playing.
//
// isPlaying reports that a track is loaded; playing carries the provider's play/pause flag.
func NowPlaying(displayName string, playback *services.SpotifyCurrentlyPlaying) NowPlayingView {
	if playback == nil || playback.Item == nil {
		return NowPlayingView{DisplayName: displayName}
	}

	item := playback.Item
	playing := playback.IsPlaying
	return NowPlayingView{
		IsPlaying:   true,
		DisplayName: displayName,
		Track: &TrackView{
			Name:     item.Name,
			Artist:   ArtistNames(item.Artists),
			Album:    item.Album.Name,
			AlbumArt: imageURL(item.Album.Images, 0),
			URL:      item.ExternalURLs.Spotify,
			Duration: item.DurationMS,
			Progress: playback.ProgressMS,
		},
		Playing: &playing,
	}
}

// TopTracks builds the track list view for top tracks.
func TopTracks(tracks []services.SpotifyTrack) TrackListView {
	view := TrackListView{Tracks: make([]TrackSummary, 0, len(tracks))}
	for _, track := range tracks {
		view.Tracks = append(view.Tracks, summarize(track))
	}
	return view
}

// RecentTracks builds the track list view for recently played tracks.
func RecentTracks(history []services.SpotifyPlayHistory) TrackListView {
	view := TrackListView{Tracks: make([]TrackSummary, 0, len(history))}
	for _, item := range history {
		view.Tracks = append(view.Tracks, summarize(item.Track))
	}
	return view
}

func summarize(track services.SpotifyTrack) TrackSummary {
	return TrackSummary{
		Name:     track.Name,
		Artist:   ArtistNames(track.Artists),
		AlbumArt: thumbnailURL(track.Album.Images),
	}
}

// ArtistNames joins artist names with ", ".
func ArtistNames(artists []services.SpotifyArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// thumbnailURL prefers the third image (Spotify lists them largest first, 64px last) and falls back to the first.
func thumbnailURL(images []services.SpotifyImage) string {
	if url := imageURL(images, 2); url != "" {
		return url
	}
	return imageURL(images, 0)
}

func imageURL(images []services.SpotifyImage, i int) string {
	if i < len(images) {
		return images[i].URL
	}
	return ""
}

// NowPlayingToText renders the view as a single line: "Name - Artist (Album) [0:42 / 3:30]".
func NowPlayingToText(view NowPlayingView) []byte {
	var buf bytes.Buffer
	if !view.IsPlaying || view.Track == nil {
		fmt.Fprintf(&buf, "%s is not playing anything\n", view.DisplayName)
		return buf.Bytes()
	}

	track := view.Track
	state := ""
	if view.Playing != nil && !*view.Playing {
		state = " (paused)"
	}
	fmt.Fprintf(&buf, "%s - %s (%s) [%s / %s]%s\n",
		track.Name, track.Artist, track.Album,
		FormatDuration(track.Progress), FormatDuration(track.Duration), state)
	return buf.Bytes()
}

// TrackListToText renders a numbered list with a title line.
func TrackListToText(title string, view TrackListView) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s:\n", title)
	if len(view.Tracks) == 0 {
		buf.WriteString("  (none)\n")
	}
	for i, track := range view.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Name)
	}
	return buf.Bytes()
}

// CredentialsToCSV writes one row per credential with columns:
// Username, ProviderID, DisplayName, ExpiresAt, CreatedAt, Refreshable. Tokens are never written.
func CredentialsToCSV(creds []*models.Credential) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Username", "ProviderID", "DisplayName", "ExpiresAt", "CreatedAt", "Refreshable"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range creds {
		record := []string{
			c.Username,
			c.ProviderID,
			c.DisplayName,
			c.ExpiresAt.UTC().Format(time.RFC3339),
			c.CreatedAt.UTC().Format(time.RFC3339),
			fmt.Sprint(c.CanRefresh()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// FormatDuration formats milliseconds as m:ss.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
