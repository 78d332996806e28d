package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSPA(t *testing.T) (dir, index, css string) {
	t.Helper()
	dir = t.TempDir()
	index = `<!DOCTYPE html><html><body>Operator Dashboard</body></html>`
	css = `body { color: red; }`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "style.css"), []byte(css), 0o644))
	return dir, index, css
}

func TestServeSPA(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir, index, css := writeSPA(t)

	tests := []struct {
		name           string
		urlPrefix      string
		requestPath    string
		expectedStatus int
		expectedBody   string
		expectedCache  string
	}{
		{
			name:           "existing asset is cached long-term",
			urlPrefix:      "/",
			requestPath:    "/assets/style.css",
			expectedStatus: http.StatusOK,
			expectedBody:   css,
			expectedCache:  "public, max-age=31536000, immutable",
		},
		{
			name:           "client route falls back to index",
			urlPrefix:      "/",
			requestPath:    "/requests/pending",
			expectedStatus: http.StatusOK,
			expectedBody:   index,
			expectedCache:  "no-cache, must-revalidate",
		},
		{
			name:           "root serves index",
			urlPrefix:      "/",
			requestPath:    "/",
			expectedStatus: http.StatusOK,
			expectedBody:   index,
		},
		{
			name:           "unknown api route is a JSON 404",
			urlPrefix:      "/",
			requestPath:    "/api/nope",
			expectedStatus: http.StatusNotFound,
			expectedBody:   "NOT_FOUND",
		},
		{
			name:           "different prefix",
			urlPrefix:      "/app",
			requestPath:    "/app/",
			expectedStatus: http.StatusOK,
			expectedBody:   index,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.NoRoute(ServeSPA(tt.urlPrefix, dir))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.requestPath, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			if tt.expectedCache != "" {
				assert.Equal(t, tt.expectedCache, w.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestServeSPA_NonExistentDirectory(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.NoRoute(ServeSPA("/", "/non/existent/directory"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEqual(t, http.StatusOK, w.Code)
}
