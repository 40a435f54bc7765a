package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusNotFound, "campaign not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "campaign not found", body["error"])
	_, hasDetails := body["details"]
	assert.False(t, hasDetails, "details must be omitted when empty")
}

func TestWriteErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	writeErrorDetails(w, http.StatusConflict, "invalid status change", "active -> pending")

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid status change", body["error"])
	assert.Equal(t, "active -> pending", body["details"])
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	writeSuccess(w, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "abc", body.Data["id"])
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/campaigns?limit=25&offset=bad", nil)
	assert.Equal(t, 25, queryInt(r, "limit", 50))
	assert.Equal(t, 0, queryInt(r, "offset", 0))
	assert.Equal(t, 50, queryInt(r, "missing", 50))
}
