package tracker

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"metadata-tracker/internal/codec"
	"metadata-tracker/internal/store"
)

// fakeCodec records calls and returns canned results.
type fakeCodec struct {
	mu    sync.Mutex
	calls map[string]int

	text    string
	textErr error

	frames  []codec.Frame
	animErr error
	webpErr error
	encoded []codec.Frame

	clip, still []byte
	videoErr    error
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{calls: make(map[string]int)}
}

func (f *fakeCodec) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeCodec) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCodec) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeCodec) setText(s string) {
	f.mu.Lock()
	f.text = s
	f.mu.Unlock()
}

func (f *fakeCodec) DecodeImage(data []byte) (image.Image, error) {
	f.record("DecodeImage")
	return imaging.New(512, 256, color.White), nil
}

func (f *fakeCodec) DecodeAnimation(data []byte, ext string) (*codec.Animation, error) {
	f.record("DecodeAnimation")
	if f.animErr != nil {
		return nil, f.animErr
	}
	return &codec.Animation{Width: 512, Height: 256, Frames: f.frames}, nil
}

func (f *fakeCodec) EncodeJPEG(img image.Image, maxEdge, quality int) ([]byte, error) {
	f.record("EncodeJPEG")
	b := fitPreview(img).Bounds()
	return []byte(fmt.Sprintf("jpeg %dx%d", b.Dx(), b.Dy())), nil
}

func (f *fakeCodec) EncodeAnimatedWebP(frames []codec.Frame, quality, loop int) ([]byte, error) {
	f.record("EncodeAnimatedWebP")
	if f.webpErr != nil {
		return nil, f.webpErr
	}
	f.mu.Lock()
	f.encoded = frames
	f.mu.Unlock()
	return []byte(fmt.Sprintf("webp %d frames", len(frames))), nil
}

func (f *fakeCodec) ReadTextMetadata(data []byte, ext string) (string, error) {
	f.record("ReadTextMetadata")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.textErr
}

func (f *fakeCodec) ExtractVideoPreviews(ctx context.Context, path string, maxEdge int) ([]byte, []byte, error) {
	f.record("ExtractVideoPreviews")
	return f.clip, f.still, f.videoErr
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	tracker *Tracker
	codec   *fakeCodec
	clock   *testClock
	out     string
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	out := t.TempDir()
	data := t.TempDir()

	reg := store.NewRegistry(store.Options{
		Kind:      store.KindSQLite,
		PerFolder: true,
		DataDir:   data,
	})

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	opts := Options{
		OutputDir:             out,
		DataDir:               data,
		ValidationChance:      0.1,
		AllowAnimatedPreviews: true,
		Clock:                 clock.Now,
		Rand:                  func() float64 { return 0 },
	}
	if mutate != nil {
		mutate(&opts)
	}

	fc := newFakeCodec()
	tr := New(reg, fc, opts)
	t.Cleanup(tr.Shutdown)
	return &testEnv{tracker: tr, codec: fc, clock: clock, out: out}
}

// writeFile creates path under the output dir with the given modification
// time.
func (e *testEnv) writeFile(t *testing.T, rel string, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(e.out, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

var baseTime = time.Unix(1_600_000_000, 0)

func metaText(rec *store.MetadataRecord) string {
	if rec == nil || rec.Metadata == nil {
		return ""
	}
	return *rec.Metadata
}

func animationFrames(n int, delay time.Duration, w, h int) []codec.Frame {
	frames := make([]codec.Frame, n)
	for i := range frames {
		frames[i] = codec.Frame{Image: imaging.New(w, h, color.Black), Delay: delay}
	}
	return frames
}

func TestVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name   string
		force  bool
		chance float64
		roll   float64
		age    time.Duration
		mtime  time.Time
		want   verdict
	}{
		{name: "inside window", chance: 1, age: time.Hour, mtime: baseTime.Add(time.Hour), want: verdictValid},
		{name: "roll misses", chance: 0.1, roll: 0.5, age: 48 * time.Hour, mtime: baseTime.Add(time.Hour), want: verdictValid},
		{name: "zero chance", chance: 0, age: 48 * time.Hour, mtime: baseTime.Add(time.Hour), want: verdictValid},
		{name: "roll hits unchanged", chance: 0.1, roll: 0.05, age: 48 * time.Hour, mtime: baseTime, want: verdictRefreshed},
		{name: "roll hits changed", chance: 0.1, roll: 0.05, age: 48 * time.Hour, mtime: baseTime.Add(time.Hour), want: verdictStale},
		{name: "forced unchanged", force: true, age: time.Minute, mtime: baseTime, want: verdictRefreshed},
		{name: "forced changed", force: true, age: time.Minute, mtime: baseTime.Add(time.Second), want: verdictStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "a.png")
			if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := os.Chtimes(path, tt.mtime, tt.mtime); err != nil {
				t.Fatal(err)
			}

			tr := New(nil, nil, Options{
				ValidationChance: tt.chance,
				ForceRevalidate:  tt.force,
				Clock:            func() time.Time { return now },
				Rand:             func() float64 { return tt.roll },
			})
			st := &store.Stamp{FileTime: baseTime.Unix(), LastVerified: now.Add(-tt.age).Unix()}

			if got := tr.verify(path, st); got != tt.want {
				t.Errorf("verify() = %v, want %v", got, tt.want)
			}
			if tt.want == verdictRefreshed && st.LastVerified != now.Unix() {
				t.Errorf("LastVerified = %d, want %d", st.LastVerified, now.Unix())
			}
		})
	}
}

func TestVerify_MissingFileIsStale(t *testing.T) {
	tr := New(nil, nil, Options{ForceRevalidate: true})
	st := &store.Stamp{FileTime: baseTime.Unix()}
	if got := tr.verify(filepath.Join(t.TempDir(), "gone.png"), st); got != verdictStale {
		t.Errorf("verify() = %v, want verdictStale", got)
	}
}

func TestShutdown_ReopensOnDemand(t *testing.T) {
	env := newTestEnv(t, nil)
	env.codec.setText(`{"v":1}`)
	path := env.writeFile(t, "a.png", "one", baseTime)
	env.tracker.GetMetadataFor(path, env.out, false)

	env.tracker.Shutdown()
	if n := env.tracker.Registry().OpenStores(); n != 0 {
		t.Fatalf("OpenStores() = %d, want 0", n)
	}

	if got := metaText(env.tracker.GetMetadataFor(path, env.out, false)); got != `{"v":1}` {
		t.Errorf("GetMetadataFor() after Shutdown = %q", got)
	}
	if got := env.codec.count("ReadTextMetadata"); got != 1 {
		t.Errorf("ReadTextMetadata calls = %d, want 1 (served from reopened store)", got)
	}
}
