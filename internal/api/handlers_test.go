// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/brokiem/plex-discord-rpc/internal/events"
	"github.com/brokiem/plex-discord-rpc/internal/models"
	"github.com/brokiem/plex-discord-rpc/internal/monitor"
	"github.com/brokiem/plex-discord-rpc/internal/plex"
	"github.com/brokiem/plex-discord-rpc/internal/websocket"
)

type fakeController struct {
	authenticated bool
	username      string
	snapshot      events.StatusEvent
	pin           *plex.PinInfo
	pollDone      bool
	pollErr       error
	servers       []models.PlexServer
	serversErr    error
	selected      string
	disconnects   int
}

func (f *fakeController) StartLogin(context.Context) (*plex.PinInfo, error) {
	return f.pin, nil
}

func (f *fakeController) PollLogin(context.Context) (bool, error) {
	return f.pollDone, f.pollErr
}

func (f *fakeController) Servers(context.Context) ([]models.PlexServer, error) {
	return f.servers, f.serversErr
}

func (f *fakeController) SelectServer(_ context.Context, name string) (*models.PlexServer, error) {
	for i := range f.servers {
		if f.servers[i].Name == name {
			f.selected = name
			return &f.servers[i], nil
		}
	}
	return nil, monitor.ErrUnknownServer
}

func (f *fakeController) Disconnect() error            { f.disconnects++; return nil }
func (f *fakeController) Snapshot() events.StatusEvent { return f.snapshot }
func (f *fakeController) Authenticated() bool          { return f.authenticated }
func (f *fakeController) Username() string             { return f.username }

func testServer(t *testing.T, controller Controller) *httptest.Server {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(func() { bus.Close() })
	handler := NewHandler(controller, websocket.NewHub(bus))
	ts := httptest.NewServer(NewRouter(handler))
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatal(err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	controller := &fakeController{
		authenticated: true,
		username:      "alice",
		snapshot: events.StatusEvent{
			Status:       "Playing: Episode 3",
			Server:       "Home Server",
			PresenceLive: true,
		},
	}
	ts := testServer(t, controller)

	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}

	var body struct {
		Status        string `json:"status"`
		Server        string `json:"server"`
		PresenceLive  bool   `json:"presence_live"`
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username"`
	}
	decode(t, resp, &body)
	if body.Status != "Playing: Episode 3" || !body.Authenticated || body.Username != "alice" {
		t.Errorf("body = %+v", body)
	}
	if body.Server != "Home Server" || !body.PresenceLive {
		t.Errorf("body = %+v", body)
	}
}

func TestLoginEndpoints(t *testing.T) {
	t.Parallel()

	controller := &fakeController{
		pin: &plex.PinInfo{ID: 7001, Code: "ABCD", AuthURL: "https://app.plex.tv/auth#?code=ABCD"},
	}
	ts := testServer(t, controller)

	resp, err := http.Post(ts.URL+"/api/v1/auth/login", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var pin plex.PinInfo
	decode(t, resp, &pin)
	if pin.Code != "ABCD" || pin.AuthURL == "" {
		t.Errorf("pin = %+v", pin)
	}

	// Pending.
	resp, err = http.Get(ts.URL + "/api/v1/auth/poll")
	if err != nil {
		t.Fatal(err)
	}
	var poll map[string]bool
	decode(t, resp, &poll)
	if poll["authenticated"] {
		t.Error("poll should report pending")
	}

	// No pending login maps to 409.
	controller.pollErr = monitor.ErrNoPendingLogin
	resp, err = http.Get(ts.URL + "/api/v1/auth/poll")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status code = %d, want 409", resp.StatusCode)
	}
}

func TestServersEndpointUnauthorized(t *testing.T) {
	t.Parallel()

	controller := &fakeController{serversErr: plex.ErrUnauthorized}
	ts := testServer(t, controller)

	resp, err := http.Get(ts.URL + "/api/v1/servers")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status code = %d, want 401", resp.StatusCode)
	}
}

func TestSelectServerEndpoint(t *testing.T) {
	t.Parallel()

	controller := &fakeController{
		servers: []models.PlexServer{{Name: "Home Server", Address: "192.168.1.5", Port: 32400, Owned: true}},
	}
	ts := testServer(t, controller)

	resp, err := http.Post(ts.URL+"/api/v1/server", "application/json",
		strings.NewReader(`{"name":"Home Server"}`))
	if err != nil {
		t.Fatal(err)
	}
	var server models.PlexServer
	decode(t, resp, &server)
	if server.Name != "Home Server" || controller.selected != "Home Server" {
		t.Errorf("server = %+v, selected = %q", server, controller.selected)
	}

	// Unknown server maps to 404.
	resp, err = http.Post(ts.URL+"/api/v1/server", "application/json",
		strings.NewReader(`{"name":"Nope"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status code = %d, want 404", resp.StatusCode)
	}

	// Missing name maps to 400.
	resp, err = http.Post(ts.URL+"/api/v1/server", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status code = %d, want 400", resp.StatusCode)
	}
}

func TestDisconnectEndpoint(t *testing.T) {
	t.Parallel()

	controller := &fakeController{}
	ts := testServer(t, controller)

	resp, err := http.Post(ts.URL+"/api/v1/disconnect", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d", resp.StatusCode)
	}
	if controller.disconnects != 1 {
		t.Errorf("disconnects = %d", controller.disconnects)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	ts := testServer(t, &fakeController{})
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := testServer(t, &fakeController{})
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d", resp.StatusCode)
	}
}
