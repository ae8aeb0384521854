package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	defaultTrackLimit = 5
	defaultTimeRange  = "short_term"
)

var timeRanges = map[string]bool{"short_term": true, "medium_term": true, "long_term": true}

// TokenProvider hands out usable access tokens.
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context, username string) (string, error)
}

// CredentialReader looks up stored credentials.
type CredentialReader interface {
	Get(ctx context.Context, username string) (*models.Credential, error)
}

// MusicService is the slice of the Spotify Web API behind the JSON endpoints.
type MusicService interface {
	CurrentlyPlaying(ctx context.Context, accessToken string) (*services.SpotifyCurrentlyPlaying, error)
	TopTracks(ctx context.Context, accessToken string, limit int, timeRange string) ([]services.SpotifyTrack, error)
	RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]services.SpotifyPlayHistory, error)
}

// APIHandler serves the public JSON endpoints.
type APIHandler struct {
	credentials CredentialReader
	tokens      TokenProvider
	music       MusicService
	logger      *log.Logger
	mux         *http.ServeMux
}

func NewAPIHandler(credentials CredentialReader, tokens TokenProvider, music MusicService, logger *log.Logger) *APIHandler {
	h := &APIHandler{credentials: credentials, tokens: tokens, music: music, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /api/nowplaying/{username}", h.nowPlaying)
	h.mux.HandleFunc("GET /api/toptracks/{username}", h.topTracks)
	h.mux.HandleFunc("GET /api/recent/{username}", h.recent)
	return h
}

func (h *APIHandler) Routes() []string {
	return []string{"/api/"}
}

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *APIHandler) nowPlaying(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	cred, err := h.credentials.Get(r.Context(), username)
	if err != nil {
		h.userError(w, r, err)
		return
	}

	token, ok := h.accessToken(w, r, username)
	if !ok {
		return
	}

	playback, err := h.music.CurrentlyPlaying(r.Context(), token)
	if err != nil {
		h.logger.Error("error fetching now playing", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch now playing")
		return
	}

	writeJSON(w, http.StatusOK, formatter.NowPlaying(cred.DisplayName, playback))
}

func (h *APIHandler) topTracks(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		timeRange = defaultTimeRange
	}
	if !timeRanges[timeRange] {
		writeError(w, http.StatusBadRequest, "Invalid time_range")
		return
	}

	token, ok := h.accessToken(w, r, username)
	if !ok {
		return
	}

	tracks, err := h.music.TopTracks(r.Context(), token, limit, timeRange)
	if err != nil {
		h.logger.Error("error fetching top tracks", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch top tracks")
		return
	}

	writeJSON(w, http.StatusOK, formatter.TopTracks(tracks))
}

func (h *APIHandler) recent(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	token, ok := h.accessToken(w, r, username)
	if !ok {
		return
	}

	history, err := h.music.RecentlyPlayed(r.Context(), token, limit)
	if err != nil {
		h.logger.Error("error fetching recent tracks", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch recent tracks")
		return
	}

	writeJSON(w, http.StatusOK, formatter.RecentTracks(history))
}

// accessToken writes the error response itself and reports false when no token is available.
func (h *APIHandler) accessToken(w http.ResponseWriter, r *http.Request, username string) (string, bool) {
	token, err := h.tokens.GetValidAccessToken(r.Context(), username)
	if err != nil {
		h.userError(w, r, err)
		return "", false
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return "", false
	}
	return token, true
}

func (h *APIHandler) userError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	h.logger.Error("failed to load credential", "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultTrackLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 50 {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
