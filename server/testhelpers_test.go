package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/planner/auth"
	"github.com/GoCodeAlone/planner/comms"
	"github.com/GoCodeAlone/planner/config"
	"github.com/GoCodeAlone/planner/planner"
	"github.com/GoCodeAlone/planner/task"
)

// memDirectory satisfies auth.Directory for tests.
type memDirectory struct {
	mu    sync.Mutex
	users map[string]string
}

func (d *memDirectory) Authenticate(_ context.Context, email, password string) (auth.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pw, ok := d.users[email]
	if !ok {
		return auth.Identity{}, auth.ErrAccountNotFound
	}
	if pw != password {
		return auth.Identity{}, auth.ErrWrongPassword
	}
	return auth.Identity{UID: "uid-" + email, Email: email}, nil
}

func (d *memDirectory) Register(_ context.Context, email, password string) (auth.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[email]; ok {
		return auth.Identity{}, auth.ErrEmailTaken
	}
	d.users[email] = password
	return auth.Identity{UID: "uid-" + email, Email: email}, nil
}

func (d *memDirectory) Lookup(_ context.Context, uid string) (auth.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for email := range d.users {
		if "uid-"+email == uid {
			return auth.Identity{UID: uid, Email: email}, nil
		}
	}
	return auth.Identity{}, auth.ErrAccountNotFound
}

type testEnv struct {
	srv      *Server
	provider *auth.Provider
	bus      *comms.InMemoryBus
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := comms.NewInMemoryBus()

	provider := auth.NewProvider(&memDirectory{users: map[string]string{}},
		auth.NewTokens("test-secret-key-1234567890", time.Hour), nil, bus, logger)
	<-provider.Start(ctx)

	ctl := planner.New(provider, task.NewAdapter(task.NewMemoryStore(), logger), logger, planner.WithBus(bus))
	ctl.Start(ctx)
	t.Cleanup(ctl.Close)

	srv := New(config.ServerConfig{Addr: ":0"}, "test", logger)
	srv.SetSessions(provider)
	srv.SetPlanner(ctl)
	srv.SetBus(bus)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	return &testEnv{srv: srv, provider: provider, bus: bus, handler: srv.Handler()}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// signUp registers student@example.com and returns the session token.
func (e *testEnv) signUp(t *testing.T) string {
	t.Helper()
	rr := e.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "student@example.com", "password": "password", "confirm": "password",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}
