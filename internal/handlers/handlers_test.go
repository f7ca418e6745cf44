package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"metadata-tracker/internal/codec"
	"metadata-tracker/internal/startup"
	"metadata-tracker/internal/store"
	"metadata-tracker/internal/tracker"
)

// stubCodec produces real JPEG thumbnails and fixed embedded metadata.
type stubCodec struct {
	text string
}

func (s *stubCodec) DecodeImage([]byte) (image.Image, error) {
	return imaging.New(64, 32, color.White), nil
}

func (s *stubCodec) DecodeAnimation([]byte, string) (*codec.Animation, error) {
	return nil, codec.ErrNoFrames
}

func (s *stubCodec) EncodeJPEG(img image.Image, _, _ int) ([]byte, error) {
	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, imaging.JPEG)
	return buf.Bytes(), err
}

func (s *stubCodec) EncodeAnimatedWebP([]codec.Frame, int, int) ([]byte, error) {
	return nil, codec.ErrVipsUnavailable
}

func (s *stubCodec) ReadTextMetadata([]byte, string) (string, error) {
	return s.text, nil
}

func (s *stubCodec) ExtractVideoPreviews(context.Context, string, int) ([]byte, []byte, error) {
	return nil, nil, errors.New("no ffmpeg in tests")
}

var fakeWebP = []byte("RIFF\x10\x00\x00\x00WEBPVP8 animated")

type testServer struct {
	h      *Handlers
	router *mux.Router
	out    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	out := t.TempDir()
	reg := store.NewRegistry(store.Options{Kind: store.KindBolt, PerFolder: true, DataDir: t.TempDir()})
	tr := tracker.New(reg, &stubCodec{text: `{"prompt":"cat"}`}, tracker.Options{
		OutputDir:             out,
		AllowAnimatedPreviews: true,
	})
	t.Cleanup(tr.Shutdown)

	h := New(tr, &startup.Config{OutputDir: out})
	h.SetReady(true)
	return &testServer{h: h, router: h.NewRouter(), out: out}
}

func (s *testServer) write(t *testing.T, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(s.out, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (s *testServer) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestGetMetadata(t *testing.T) {
	s := newTestServer(t)
	s.write(t, "2024/a.png", []byte("png"))

	w := s.do("GET", "/api/metadata/2024/a.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp MetadataResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Path != "2024/a.png" || resp.Key != "a.png" {
		t.Errorf("path/key = %s, %s", resp.Path, resp.Key)
	}
	if resp.Metadata == nil || *resp.Metadata != `{"prompt":"cat"}` {
		t.Errorf("Metadata = %v", resp.Metadata)
	}
	if resp.FileTime == 0 {
		t.Error("FileTime should be set")
	}
}

func TestGetMetadata_Errors(t *testing.T) {
	s := newTestServer(t)

	if w := s.do("GET", "/api/metadata/missing.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", w.Code)
	}
}

func TestDeleteMetadata(t *testing.T) {
	s := newTestServer(t)
	path := s.write(t, "a.png", []byte("png"))
	s.do("GET", "/api/metadata/a.png", nil)

	w := s.do("DELETE", "/api/metadata/a.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	st, key, err := s.h.tracker.Registry().StoreFor(path)
	if err != nil {
		t.Fatal(err)
	}
	if rec, _ := st.GetMetadata(key); rec != nil {
		t.Errorf("record still cached: %+v", rec)
	}
}

func TestGetPreview_Static(t *testing.T) {
	s := newTestServer(t)
	s.write(t, "a.png", []byte("png"))

	w := s.do("GET", "/api/preview/a.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %s, want image/jpeg", ct)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("ETag missing")
	}
	again := s.do("GET", "/api/preview/a.png", http.Header{"If-None-Match": {etag}})
	if again.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", again.Code)
	}
}

func TestGetPreview_AnimatedAndSimplified(t *testing.T) {
	s := newTestServer(t)
	s.write(t, "clip.gif", []byte("gif"))
	s.write(t, "clip.swarmpreview.webp", fakeWebP)
	still, _ := (&stubCodec{}).EncodeJPEG(imaging.New(8, 8, color.Black), 0, 0)
	s.write(t, "clip.swarmpreview.jpg", still)

	tests := []struct {
		target string
		want   string
	}{
		{"/api/preview/clip.gif", "image/webp"},
		{"/api/preview/clip.gif?simplified=true", "image/jpeg"},
	}
	for _, tt := range tests {
		w := s.do("GET", tt.target, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.target, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != tt.want {
			t.Errorf("%s: Content-Type = %s, want %s", tt.target, ct, tt.want)
		}
	}
}

func TestGetPreview_NotAvailable(t *testing.T) {
	s := newTestServer(t)
	s.write(t, "song.mp3", []byte("ID3"))

	for _, target := range []string{"/api/preview/song.mp3", "/api/preview/missing.png"} {
		if w := s.do("GET", target, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, w.Code)
		}
	}
}

func TestResolvePath(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		rel     string
		wantErr bool
	}{
		{"a.png", false},
		{"2024/05/a.png", false},
		{"../outside.png", true},
		{"2024/../../outside.png", true},
		{"", true},
		{"a\x00.png", true},
	}
	for _, tt := range tests {
		full, err := s.h.resolvePath(tt.rel)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolvePath(%q) = %q, %v; wantErr %v", tt.rel, full, err, tt.wantErr)
		}
	}
}

func TestIsSubPath(t *testing.T) {
	tests := []struct {
		parent, child string
		want          bool
	}{
		{"/out", "/out/a.png", true},
		{"/out", "/out", true},
		{"/out", "/outside/a.png", false},
		{"/out", "/a.png", false},
		{"/out", "/out/..hidden", true},
	}
	for _, tt := range tests {
		if got := isSubPath(tt.parent, tt.child); got != tt.want {
			t.Errorf("isSubPath(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
		}
	}
}

func TestClearCache(t *testing.T) {
	s := newTestServer(t)
	s.write(t, "a.png", []byte("png"))
	s.do("GET", "/api/metadata/a.png", nil)

	if _, err := os.Stat(filepath.Join(s.out, store.KindBolt.FileName())); err != nil {
		t.Fatalf("store file missing before clear: %v", err)
	}

	w := s.do("POST", "/api/admin/clear-cache", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(s.out, store.KindBolt.FileName())); !os.IsNotExist(err) {
		t.Error("store file should be deleted")
	}
	if w := s.do("GET", "/api/admin/clear-cache", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET clear-cache status = %d, want 405", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestServer(t)
	s.write(t, "a/x.png", []byte("png"))
	s.write(t, "b/y.png", []byte("png"))
	s.do("GET", "/api/metadata/a/x.png", nil)
	s.do("GET", "/api/metadata/b/y.png", nil)

	var resp StatsResponse
	if err := json.Unmarshal(s.do("GET", "/api/stats", nil).Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.OpenStores != 2 {
		t.Errorf("OpenStores = %d, want 2", resp.OpenStores)
	}
}

func TestHealthChecks(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		ready      bool
		path       string
		wantCode   int
		wantStatus string
	}{
		{"health ready", true, "/health", http.StatusOK, statusHealthy},
		{"health starting", false, "/health", http.StatusServiceUnavailable, statusStarting},
		{"readyz ready", true, "/readyz", http.StatusOK, "ready"},
		{"readyz not ready", false, "/readyz", http.StatusServiceUnavailable, "not_ready"},
		{"livez always", false, "/livez", http.StatusOK, "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.h.SetReady(tt.ready)
			w := s.do("GET", tt.path, nil)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status field = %v, want %s", body["status"], tt.wantStatus)
			}
		})
	}

	s.h.SetReady(true)
	if w := s.do("HEAD", "/livez", nil); w.Body.Len() != 0 {
		t.Error("HEAD /livez should not have a body")
	}
}

func TestGetVersion(t *testing.T) {
	s := newTestServer(t)

	var info startup.BuildInfo
	if err := json.Unmarshal(s.do("GET", "/version", nil).Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Version != startup.Version || info.GoVersion == "" {
		t.Errorf("version = %+v", info)
	}
}

func TestMetricsRouter(t *testing.T) {
	r := MetricsRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("go_goroutines")) {
		t.Error("metrics output should include runtime collectors")
	}
}
