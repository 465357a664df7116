package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(store *MemoryStore, dryRun bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	relay := NewRelay(Credentials{}, dryRun, store)

	r := gin.New()
	NewHandler(relay, store, store).RegisterRoutes(r.Group("/v1"))
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestDispatchEndpoint(t *testing.T) {
	r := setupRouter(NewMemoryStore(), true)

	w := postJSON(r, "/v1/notifications/dispatch",
		`{"event_type":"security_alert","channels":["discord","mobile"],"payload":{"score":90},"user_id":"user-1"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DryRun  bool `json:"dry_run"`
		Results []struct {
			Channel string `json:"channel"`
			Status  string `json:"status"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.DryRun)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "discord", resp.Results[0].Channel)
	assert.Equal(t, "dry_run", resp.Results[0].Status)
	assert.Equal(t, "dry_run", resp.Results[1].Status)
}

func TestDispatchEndpoint_Validation(t *testing.T) {
	r := setupRouter(NewMemoryStore(), true)

	tests := []struct {
		name string
		body string
	}{
		{"missing event_type", `{"channels":["discord"],"user_id":"u"}`},
		{"empty channels", `{"event_type":"t","channels":[],"user_id":"u"}`},
		{"missing user_id", `{"event_type":"t","channels":["discord"]}`},
		{"not json", `nope`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(r, "/v1/notifications/dispatch", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPreferenceEndpoints(t *testing.T) {
	r := setupRouter(NewMemoryStore(), true)

	w := postJSON(r, "/v1/notifications/preferences",
		`{"user_id":"U","event_type":"transfer","channels":["discord"],"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/notifications/preferences/U", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		UserID      string        `json:"user_id"`
		Preferences []*Preference `json:"preferences"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Preferences, 1)
	assert.Equal(t, "transfer", resp.Preferences[0].EventType)
	assert.Equal(t, []string{"discord"}, resp.Preferences[0].Channels)
	assert.True(t, resp.Preferences[0].Enabled)
}

func TestPreferenceEndpoints_Validation(t *testing.T) {
	r := setupRouter(NewMemoryStore(), true)

	// Unknown channel rejected.
	w := postJSON(r, "/v1/notifications/preferences",
		`{"user_id":"U","event_type":"transfer","channels":["fax"],"enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// enabled is required, not defaulted.
	w = postJSON(r, "/v1/notifications/preferences",
		`{"user_id":"U","event_type":"transfer","channels":["discord"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferenceEndpoints_EmptyListForUnknownUser(t *testing.T) {
	r := setupRouter(NewMemoryStore(), true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/notifications/preferences/nobody", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"nobody","preferences":[]}`, w.Body.String())
}

func TestLogsEndpoint(t *testing.T) {
	store := NewMemoryStore()
	r := setupRouter(store, true)

	// Dispatch writes the audit trail the endpoint reads back.
	w := postJSON(r, "/v1/notifications/dispatch",
		`{"event_type":"transfer","channels":["discord","email"],"user_id":"user-9"}`)
	require.Equal(t, http.StatusOK, w.Code)

	logs, err := store.ListByUser(context.Background(), "user-9", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/notifications/logs/user-9", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		UserID string `json:"user_id"`
		Logs   []*Log `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user-9", resp.UserID)
	require.Len(t, resp.Logs, 2)
	assert.Equal(t, StatusDryRun, resp.Logs[0].Status)
}
