package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	appconfig "github.com/mispartech/new-mispartechnologies-sub001/config"

	"github.com/gin-gonic/gin"
)

func writeLocales(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"en.json": `{"greeting": "Hello", "only.english": "English only"}`,
		"de.json": `{"greeting": "Hallo"}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write locale: %v", err)
		}
	}
	return dir
}

func localizedRouter(t *testing.T, dir string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(I18n(appconfig.I18nConfig{DefaultLanguage: "en", LocalesDir: dir}))
	router.GET("/t", func(c *gin.Context) {
		c.String(http.StatusOK, TranslateFor(c, c.Query("key")))
	})
	return router
}

func TestI18nLanguageSelection(t *testing.T) {
	router := localizedRouter(t, writeLocales(t))

	tests := []struct {
		name     string
		url      string
		header   string
		expected string
	}{
		{"default", "/t?key=greeting", "", "Hello"},
		{"query param", "/t?key=greeting&lang=de", "", "Hallo"},
		{"accept header", "/t?key=greeting", "de-DE,de;q=0.9", "Hallo"},
		{"query wins over header", "/t?key=greeting&lang=en", "de", "Hello"},
		{"unknown language falls back", "/t?key=greeting&lang=fr", "", "Hello"},
		{"missing key passes through", "/t?key=does.not.exist", "", "does.not.exist"},
		{"fallback to default language", "/t?key=only.english&lang=de", "", "English only"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)
			if tc.header != "" {
				req.Header.Set("Accept-Language", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Body.String() != tc.expected {
				t.Errorf("body = %q, want %q", rec.Body.String(), tc.expected)
			}
		})
	}
}

func TestI18nMissingLocaleDirPassesKeysThrough(t *testing.T) {
	router := localizedRouter(t, filepath.Join(t.TempDir(), "missing"))

	req := httptest.NewRequest("GET", "/t?key=greeting", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Body.String() != "greeting" {
		t.Errorf("body = %q, want key pass-through", rec.Body.String())
	}
}
