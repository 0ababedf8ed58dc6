package ws

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/planner/comms"
)

// nextData returns the payload of the next "data:" line.
func nextData(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: "); ok {
			return data
		}
	}
}

func TestHub_ForwardsBusEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeSSE))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := bufio.NewReader(resp.Body)
	assert.JSONEq(t, `{"type":"connected"}`, nextData(t, body))
	require.Equal(t, 1, hub.Clients())

	bus := comms.NewInMemoryBus()
	unsub := bus.Subscribe("", hub.Forward)
	defer unsub()
	require.NoError(t, bus.Publish(ctx, &comms.Event{
		Type:      comms.TypeTasksSaved,
		Topic:     comms.TopicTasks,
		Payload:   map[string]int{"count": 2},
		Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}))

	var got Event
	require.NoError(t, json.Unmarshal([]byte(nextData(t, body)), &got))
	assert.Equal(t, string(comms.TypeTasksSaved), got.Type)
	assert.Equal(t, comms.TopicTasks, got.Topic)
	assert.Equal(t, map[string]any{"count": float64(2)}, got.Payload)

	cancel()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Broadcast(Event{Type: "noop"})
	assert.Zero(t, hub.Clients())
}
