package aliasstore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec, payload
}

func TestHandler_Lifecycle(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	h := NewHandler(s, nil, zaptest.NewLogger(t))

	rec, _ := doRequest(t, h, http.MethodOptions, "/api/merges", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec, payload := doRequest(t, h, http.MethodGet, "/api/merges?account=roche", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, payload)

	rec, payload = doRequest(t, h, http.MethodPost, "/api/merges?account=Roche",
		`{"canonicalId":"e1","merge":{"absorbed":["a","b"],"aliases":["DS"],"mergedSnippets":[]},"user":"kim"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, float64(1), payload["mergeCount"])
	assert.Equal(t, float64(2), payload["totalAbsorbed"])

	rec, payload = doRequest(t, h, http.MethodGet, "/api/merges?account=roche", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, payload, "e1")
	entry := payload["e1"].(map[string]any)
	assert.Equal(t, "kim", entry["user"])

	rec, payload = doRequest(t, h, http.MethodDelete, "/api/merges?account=roche", `{"canonicalId":"e1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), payload["remainingCount"])
	assert.Equal(t, []any{"a", "b"}, payload["unmergedEntities"])
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()
	s, mr := newTestStore(t)
	h := NewHandler(s, []string{"roche", "gsk"}, zaptest.NewLogger(t))

	rec, payload := doRequest(t, h, http.MethodGet, "/api/merges", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "account parameter required", payload["error"])

	rec, payload = doRequest(t, h, http.MethodGet, "/api/merges?account=acme", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid account: acme. Must be one of: gsk, roche", payload["error"])

	rec, payload = doRequest(t, h, http.MethodPost, "/api/merges?account=roche", `{"canonicalId":"e1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "canonicalId and merge required", payload["error"])

	rec, payload = doRequest(t, h, http.MethodPost, "/api/merges?account=roche", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "canonicalId and merge required", payload["error"])

	rec, payload = doRequest(t, h, http.MethodDelete, "/api/merges?account=roche", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "canonicalId required", payload["error"])

	rec, payload = doRequest(t, h, http.MethodPut, "/api/merges?account=roche", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", payload["error"])

	require.NoError(t, mr.Set("merges:gsk", "{broken"))
	rec, payload = doRequest(t, h, http.MethodGet, "/api/merges?account=gsk", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Database error", payload["error"])
}
