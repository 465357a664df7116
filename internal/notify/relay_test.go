package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(channels ...string) *Event {
	return &Event{
		EventType: "security_alert",
		Channels:  channels,
		Payload:   map[string]any{"risk_score": 85, "chain": "polkadot"},
		UserID:    "user-1",
	}
}

func TestDispatch_DryRunNeverTouchesNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	relay := NewRelay(Credentials{
		DiscordWebhookURL: srv.URL,
		GenericWebhookURL: srv.URL,
		SMTPHost:          "smtp.example.com",
		SMTPUser:          "alerts",
	}, true, NewMemoryStore())

	logs := relay.Dispatch(context.Background(), testEvent("discord", "email", "webhook", "mobile"))

	require.Len(t, logs, 4)
	for _, l := range logs {
		assert.Equal(t, StatusDryRun, l.Status, "channel %s", l.Channel)
		assert.NotEmpty(t, l.Detail)
	}
	assert.Equal(t, int32(0), hits.Load(), "dry run must not perform network I/O")
}

func TestDispatch_DryRunRedactsMissingDestination(t *testing.T) {
	relay := NewRelay(Credentials{}, true, nil)

	logs := relay.Dispatch(context.Background(), testEvent("discord"))

	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Detail, "NOT_CONFIGURED")
}

func TestDispatch_LiveDiscordNotConfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	// Live mode, no Discord URL: no network attempt at all.
	relay := NewRelay(Credentials{}, false, nil)

	logs := relay.Dispatch(context.Background(), testEvent("discord"))

	require.Len(t, logs, 1)
	assert.Equal(t, StatusNotConfigured, logs[0].Status)
	assert.Equal(t, int32(0), hits.Load())
}

func TestDispatch_LiveDiscordSent(t *testing.T) {
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		body.Store(msg["content"])
		w.WriteHeader(http.StatusNoContent) // Discord answers 204
	}))
	t.Cleanup(srv.Close)

	relay := NewRelay(Credentials{DiscordWebhookURL: srv.URL}, false, nil)

	logs := relay.Dispatch(context.Background(), testEvent("discord"))

	require.Len(t, logs, 1)
	assert.Equal(t, StatusSent, logs[0].Status)

	content, _ := body.Load().(string)
	assert.Contains(t, content, "SECURITY_ALERT")
	assert.Contains(t, content, "risk score")
}

func TestDispatch_LiveWebhookEnvelope(t *testing.T) {
	var envelope atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		envelope.Store(e)
	}))
	t.Cleanup(srv.Close)

	relay := NewRelay(Credentials{GenericWebhookURL: srv.URL}, false, nil)

	logs := relay.Dispatch(context.Background(), testEvent("webhook"))

	require.Len(t, logs, 1)
	assert.Equal(t, StatusSent, logs[0].Status)

	e, _ := envelope.Load().(map[string]any)
	require.NotNil(t, e)
	assert.Equal(t, "security_alert", e["event_type"])
	assert.Equal(t, "user-1", e["user_id"])
	assert.NotEmpty(t, e["timestamp"])
	payload, _ := e["payload"].(map[string]any)
	assert.Equal(t, "polkadot", payload["chain"])
}

func TestDispatch_LiveWebhookHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	relay := NewRelay(Credentials{GenericWebhookURL: srv.URL}, false, nil)

	logs := relay.Dispatch(context.Background(), testEvent("webhook"))

	require.Len(t, logs, 1)
	assert.Equal(t, StatusError, logs[0].Status)
	assert.Contains(t, logs[0].Error, "502")
}

func TestDispatch_EmailIsNamedExtensionPoint(t *testing.T) {
	// Credentials present: the terminal status is not_implemented, not error.
	relay := NewRelay(Credentials{SMTPHost: "smtp.example.com", SMTPUser: "alerts"}, false, nil)
	logs := relay.Dispatch(context.Background(), testEvent("email"))
	require.Len(t, logs, 1)
	assert.Equal(t, StatusNotImplemented, logs[0].Status)

	// Credentials absent: distinguished as not_configured.
	relay = NewRelay(Credentials{}, false, nil)
	logs = relay.Dispatch(context.Background(), testEvent("email"))
	require.Len(t, logs, 1)
	assert.Equal(t, StatusNotConfigured, logs[0].Status)
}

func TestDispatch_MobileReservedChannel(t *testing.T) {
	relay := NewRelay(Credentials{}, false, nil)

	logs := relay.Dispatch(context.Background(), testEvent("mobile"))

	require.Len(t, logs, 1)
	assert.Equal(t, StatusNotConfigured, logs[0].Status)
}

func TestDispatch_UnsupportedChannel(t *testing.T) {
	relay := NewRelay(Credentials{}, false, nil)

	logs := relay.Dispatch(context.Background(), testEvent("pager", "discord"))

	require.Len(t, logs, 2)
	assert.Equal(t, StatusUnsupported, logs[0].Status)
	// The bad channel does not block the next one.
	assert.Equal(t, StatusNotConfigured, logs[1].Status)
}

func TestDispatch_ChannelFailureIsolation(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(good.Close)

	relay := NewRelay(Credentials{
		DiscordWebhookURL: bad.URL,
		GenericWebhookURL: good.URL,
	}, false, nil)

	logs := relay.Dispatch(context.Background(), testEvent("discord", "webhook"))

	require.Len(t, logs, 2)
	assert.Equal(t, StatusError, logs[0].Status)
	assert.Equal(t, StatusSent, logs[1].Status)
}

func TestDispatch_AuditTrailAppended(t *testing.T) {
	store := NewMemoryStore()
	relay := NewRelay(Credentials{}, true, store)

	relay.Dispatch(context.Background(), testEvent("discord", "email"))

	logs, err := store.ListByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, "security_alert", l.EventType)
		assert.Equal(t, StatusDryRun, l.Status)
		assert.False(t, l.CreatedAt.IsZero())
	}
}

func TestDispatch_SetsEventTimestamp(t *testing.T) {
	relay := NewRelay(Credentials{}, true, nil)

	event := testEvent("mobile")
	require.True(t, event.Timestamp.IsZero())

	relay.Dispatch(context.Background(), event)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
}
