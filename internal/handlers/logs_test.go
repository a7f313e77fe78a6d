package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"neverlost/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recentResponse struct {
	OK     bool             `json:"ok"`
	Code   *string          `json:"code"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Count  int              `json:"count"`
	Items  []map[string]any `json:"items"`
}

func hit(r *gin.Engine, path string) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	r.ServeHTTP(w, req)
}

func apiGet(r *gin.Engine, path, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	req.Header.Set("Accept", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestLogAPI_Auth(t *testing.T) {
	h, _ := setupTestHandler(t, config.Config{LogAPIKey: "s3cret"}, true)
	r := setupTestRouter(h)

	t.Run("Missing Token", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/recent", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"ok":false,"message":"Unauthorized"}`, w.Body.String())
	})

	t.Run("Wrong Token", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/count?code=abc", "nope")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Correct Token", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/recent", "s3cret")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Auth Checked Before Store", func(t *testing.T) {
		h, _ := setupTestHandler(t, config.Config{LogAPIKey: "s3cret"}, false)
		r := setupTestRouter(h)

		assert.Equal(t, http.StatusUnauthorized, apiGet(r, "/api/v1/logs/recent", "").Code)
		assert.Equal(t, http.StatusServiceUnavailable, apiGet(r, "/api/v1/logs/recent", "s3cret").Code)
	})
}

func TestLogAPI_NoStore(t *testing.T) {
	h, _ := setupTestHandler(t, config.Config{}, false)
	r := setupTestRouter(h)

	for _, path := range []string{"/api/v1/logs/recent", "/api/v1/logs/count?code=abc"} {
		w := apiGet(r, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.JSONEq(t, `{"ok":false,"message":"DB binding not configured"}`, w.Body.String(), path)
	}
}

func TestLogAPI_Recent(t *testing.T) {
	h, _ := setupTestHandler(t, config.Config{CodeMaxLen: "16"}, true)
	r := setupTestRouter(h)

	hit(r, "/marker/camp%20a%2Fb.js")
	hit(r, "/marker/"+strings.Repeat("y", 40)+".css")
	hit(r, "/marker/other.txt")
	hit(r, "/marker/other.json")
	h.auditService.Stop()

	t.Run("Defaults And Newest First", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/recent", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp recentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Nil(t, resp.Code)
		assert.Equal(t, 50, resp.Limit)
		assert.Equal(t, 0, resp.Offset)
		assert.Equal(t, 4, resp.Count)
		require.Len(t, resp.Items, 4)
		assert.Equal(t, "json", resp.Items[0]["ext"])
		assert.Equal(t, "js", resp.Items[3]["ext"])
	})

	t.Run("Percent Encoded Code Filter", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/recent?code=camp%20a%2Fb", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp recentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Code)
		assert.Equal(t, "camp a/b", *resp.Code)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "camp a/b", resp.Items[0]["code"])
	})

	t.Run("Long Code Filter Is Truncated Like Ingestion", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/recent?code="+strings.Repeat("y", 30), "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp recentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, strings.Repeat("y", 16), *resp.Code)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("Limit And Offset Clamped", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/recent?limit=0&offset=-5", "")
		var resp recentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Limit)
		assert.Equal(t, 0, resp.Offset)
		assert.Equal(t, 1, resp.Count)

		w = apiGet(r, "/api/v1/logs/recent?limit=9999&offset=2", "")
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 200, resp.Limit)
		assert.Equal(t, 2, resp.Offset)
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("Edge Metadata Is Returned As Text", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/recent?code=other&limit=1", "")
		var resp recentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)

		raw, ok := resp.Items[0]["cf_json"].(string)
		require.True(t, ok, "cf_json should be a string")
		var meta map[string]any
		assert.NoError(t, json.Unmarshal([]byte(raw), &meta))
		assert.Equal(t, "HTTP/1.1", meta["httpProtocol"])
	})

	t.Run("No Match Gives Empty Array", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/recent?code=missing", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"items":[]`)
		assert.Contains(t, w.Body.String(), `"count":0`)
	})
}

func TestLogAPI_Count(t *testing.T) {
	h, _ := setupTestHandler(t, config.Config{}, true)
	r := setupTestRouter(h)

	hit(r, "/marker/abc.js")
	hit(r, "/marker/abc.css")
	hit(r, "/marker/xyz.css")
	h.auditService.Stop()

	t.Run("Counts One Code", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/count?code=abc", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true,"code":"abc","count":2}`, w.Body.String())
	})

	t.Run("Code Is Trimmed", func(t *testing.T) {
		w := apiGet(r, "/api/v1/logs/count?code=%20xyz%20", "")
		assert.JSONEq(t, `{"ok":true,"code":"xyz","count":1}`, w.Body.String())
	})

	t.Run("Code Is Required", func(t *testing.T) {
		for _, path := range []string{"/api/v1/logs/count", "/api/v1/logs/count?code=%20%20"} {
			w := apiGet(r, path, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, path)
			assert.JSONEq(t, `{"ok":false,"message":"code is required"}`, w.Body.String(), path)
		}
	})
}

func TestLogAPI_QueryFailure(t *testing.T) {
	h, db := setupTestHandler(t, config.Config{}, true)
	r := setupTestRouter(h)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.Close()

	w := apiGet(r, "/api/v1/logs/count?code=abc", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"ok":false,"message":"query failed"}`, w.Body.String())
}
