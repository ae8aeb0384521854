package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// AuthFlow starts and completes authorization handshakes.
type AuthFlow interface {
	BeginAuthorization(ctx context.Context) (redirectURL, state string, err error)
	CompleteAuthorization(ctx context.Context, code, state string) (*models.Credential, error)
}

// AuthHandler serves the browser side of the authorization flow.
type AuthHandler struct {
	flow   AuthFlow
	logger *log.Logger
	mux    *http.ServeMux
}

func NewAuthHandler(flow AuthFlow, logger *log.Logger) *AuthHandler {
	h := &AuthHandler{flow: flow, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /auth/login", h.login)
	h.mux.HandleFunc("GET /callback", h.callback)
	return h
}

func (h *AuthHandler) Routes() []string {
	return []string{"/auth/login", "/callback"}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// login redirects the browser to the provider's consent page.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	redirectURL, state, err := h.flow.BeginAuthorization(r.Context())
	if err != nil {
		h.logger.Error("failed to start authorization", "error", err, "request_id", RequestIDFromContext(r.Context()))
		http.Error(w, "Failed to start authentication", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("redirecting to provider", "state", state)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// callback completes the handshake and sends the browser to the success page.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Warn("provider returned an error", "error", providerErr, "description", q.Get("error_description"))
	}

	cred, err := h.flow.CompleteAuthorization(r.Context(), q.Get("code"), q.Get("state"))
	switch {
	case errors.Is(err, shared.ErrInvalidState):
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("error in callback", "error", err, "request_id", RequestIDFromContext(r.Context()))
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/success?username="+url.QueryEscape(cred.Username), http.StatusFound)
}
