package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewMemoryStore()).RegisterRoutes(r.Group("/v1"))
	return r
}

func TestCreateAndListChecks(t *testing.T) {
	r := setupRouter()

	for _, name := range []string{"dashboard", "mobile-app"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/status",
			strings.NewReader(`{"client_name":"`+name+`"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var check Check
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))
		assert.NotEmpty(t, check.ID)
		assert.Equal(t, name, check.ClientName)
		assert.False(t, check.Timestamp.IsZero())
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var checks []*Check
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checks))
	require.Len(t, checks, 2)
	// Most recent first
	assert.Equal(t, "mobile-app", checks[0].ClientName)
}

func TestCreateCheck_Validation(t *testing.T) {
	r := setupRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/status", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
