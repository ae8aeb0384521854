// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// Epoch is a fixed instant for fake clocks.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// FakeResponse is a canned status and JSON body. A nil Body writes no body.
type FakeResponse struct {
	Status int
	Body   any
}

// FakeProvider is an [httptest.Server] impersonating the Spotify accounts service and Web API.
//
// Token endpoint: POST /api/token. Web API: everything under /v1.
type FakeProvider struct {
	Server *httptest.Server

	mu            sync.Mutex
	exchange      FakeResponse
	refresh       FakeResponse
	api           map[string]FakeResponse
	tokenRequests []url.Values
	bearers       []string
	refreshGate   chan struct{}
}

// NewFakeProvider starts a provider that issues AT1/RT1 for any code and AT2/RT2 for any refresh token,
// with a 3600s lifetime, and reports profile {id: "1", display_name: "Jane Doe"}.
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()

	f := &FakeProvider{
		exchange: FakeResponse{Status: http.StatusOK, Body: map[string]any{
			"access_token": "AT1", "refresh_token": "RT1", "expires_in": 3600, "token_type": "Bearer",
		}},
		refresh: FakeResponse{Status: http.StatusOK, Body: map[string]any{
			"access_token": "AT2", "refresh_token": "RT2", "expires_in": 3600, "token_type": "Bearer",
		}},
		api: map[string]FakeResponse{
			"/v1/me": {Status: http.StatusOK, Body: map[string]any{"id": "1", "display_name": "Jane Doe"}},
		},
	}

	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// AuthURL returns the authorize endpoint URL.
func (f *FakeProvider) AuthURL() string { return f.Server.URL + "/authorize" }

// TokenURL returns the token endpoint URL.
func (f *FakeProvider) TokenURL() string { return f.Server.URL + "/api/token" }

// APIURL returns the Web API base URL.
func (f *FakeProvider) APIURL() string { return f.Server.URL + "/v1" }

// SetExchange sets the authorization_code grant response.
func (f *FakeProvider) SetExchange(status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchange = FakeResponse{Status: status, Body: body}
}

// SetRefresh sets the refresh_token grant response.
func (f *FakeProvider) SetRefresh(status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = FakeResponse{Status: status, Body: body}
}

// SetAPI sets the response for a Web API path such as "/v1/me".
func (f *FakeProvider) SetAPI(path string, status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.api[path] = FakeResponse{Status: status, Body: body}
}

// HoldRefresh makes refresh grants block until the returned release func is called.
func (f *FakeProvider) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.refreshGate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// TokenRequests returns copies of the forms posted to the token endpoint.
func (f *FakeProvider) TokenRequests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenRequests...)
}

// GrantCount counts token endpoint calls with the given grant_type.
func (f *FakeProvider) GrantCount(grantType string) int {
	n := 0
	for _, form := range f.TokenRequests() {
		if form.Get("grant_type") == grantType {
			n++
		}
	}
	return n
}

// Bearers returns the access tokens presented to the Web API, in order.
func (f *FakeProvider) Bearers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bearers...)
}

func (f *FakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/token" {
		f.serveToken(w, r)
		return
	}

	f.mu.Lock()
	f.bearers = append(f.bearers, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	resp, ok := f.api[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		resp = FakeResponse{Status: http.StatusNotFound}
	}
	writeFake(w, resp)
}

func (f *FakeProvider) serveToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.tokenRequests = append(f.tokenRequests, r.PostForm)
	var resp FakeResponse
	var gate chan struct{}
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		resp = f.exchange
	case "refresh_token":
		resp, gate = f.refresh, f.refreshGate
	default:
		resp = FakeResponse{Status: http.StatusBadRequest, Body: map[string]any{"error": "unsupported_grant_type"}}
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	writeFake(w, resp)
}

func writeFake(w http.ResponseWriter, resp FakeResponse) {
	if resp.Body == nil {
		w.WriteHeader(resp.Status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	json.NewEncoder(w).Encode(resp.Body)
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// ErrTransport is returned by [FailingClient].
var ErrTransport = errors.New("transport failed")

// FailingClient returns an [http.Client] whose every request fails with [ErrTransport].
func FailingClient() *http.Client {
	return &http.Client{Transport: NewMockRoundTripper(nil, ErrTransport)}
}

// FWriter is an [io.Writer] that always fails.
type FWriter struct{}

func (FWriter) Write([]byte) (int, error) {
	return 0, errors.New("write failed")
}
