package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_Embedded(t *testing.T) {
	h := Handler("")

	tests := []struct {
		path     string
		want     int
		contains string
	}{
		{"/", http.StatusOK, "<!DOCTYPE html>"},
		{"/panel.js", http.StatusOK, "/auth/ws-ticket"},
		{"/panel.css", http.StatusOK, "#feed"},
		{"/booth", http.StatusOK, "<!DOCTYPE html>"},
		{"/missing.js", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, h, tt.path)
			if w.Code != tt.want {
				t.Fatalf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("GET %s body does not contain %q", tt.path, tt.contains)
			}
			if tt.want == http.StatusOK && w.Header().Get("Cache-Control") != "no-cache, must-revalidate" {
				t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestHandler_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<!DOCTYPE html><p>house panel</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.js"), []byte("// extra"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := Handler(dir)

	if w := get(t, h, "/"); !strings.Contains(w.Body.String(), "house panel") {
		t.Errorf("GET / = %q, want directory index", w.Body.String())
	}
	if w := get(t, h, "/extra.js"); w.Code != http.StatusOK {
		t.Errorf("GET /extra.js = %d, want 200", w.Code)
	}
	if w := get(t, h, "/panel.js"); w.Code != http.StatusNotFound {
		t.Errorf("GET /panel.js = %d, want 404 (embedded asset must not leak through)", w.Code)
	}
}

func TestHandler_MissingDirectoryFallsBack(t *testing.T) {
	h := Handler(filepath.Join(t.TempDir(), "nope"))

	w := get(t, h, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Sequencer") {
		t.Errorf("GET / = %d %q, want embedded index", w.Code, w.Body.String())
	}
}
