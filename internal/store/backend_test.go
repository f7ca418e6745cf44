package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var allKinds = []Kind{KindSQLite, KindBolt}

func strPtr(s string) *string {
	return &s
}

func openTestBackend(t *testing.T, kind Kind) (Backend, string) {
	t.Helper()
	path := kind.Path(t.TempDir())
	b, err := Open(kind, path)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", kind, err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, path
}

func TestBackend_MetadataRoundTrip(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			b, _ := openTestBackend(t, kind)

			rec, err := b.GetMetadata("missing.png")
			if err != nil || rec != nil {
				t.Fatalf("GetMetadata(missing) = %v, %v; want nil, nil", rec, err)
			}

			if err := b.PutMetadata(&MetadataRecord{Key: "a.png", Stamp: Stamp{FileTime: 10, LastVerified: 20}}); err != nil {
				t.Fatalf("PutMetadata() error = %v", err)
			}
			rec, err = b.GetMetadata("a.png")
			if err != nil || rec == nil {
				t.Fatalf("GetMetadata() = %v, %v", rec, err)
			}
			if rec.Metadata != nil {
				t.Errorf("Metadata = %q, want nil", *rec.Metadata)
			}
			if rec.FileTime != 10 || rec.LastVerified != 20 {
				t.Errorf("stamp = %+v, want {10 20}", rec.Stamp)
			}

			meta := `{"sui_image_params":{"seed":1}}`
			if err := b.PutMetadata(&MetadataRecord{Key: "a.png", Metadata: strPtr(meta), Stamp: Stamp{FileTime: 11, LastVerified: 21}}); err != nil {
				t.Fatalf("PutMetadata(upsert) error = %v", err)
			}
			rec, _ = b.GetMetadata("a.png")
			if rec.Metadata == nil || *rec.Metadata != meta {
				t.Errorf("Metadata after upsert = %v, want %q", rec.Metadata, meta)
			}
			if rec.FileTime != 11 {
				t.Errorf("FileTime after upsert = %d, want 11", rec.FileTime)
			}
		})
	}
}

func TestBackend_PreviewRoundTrip(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			b, _ := openTestBackend(t, kind)

			static := &PreviewRecord{Key: "still.jpg", Data: []byte{0xFF, 0xD8, 1, 2}, Stamp: Stamp{FileTime: 5, LastVerified: 6}}
			animated := &PreviewRecord{Key: "anim.gif", Data: []byte("RIFF-anim"), Simplified: []byte{0xFF, 0xD8, 3}, Stamp: Stamp{FileTime: 7, LastVerified: 8}}
			for _, rec := range []*PreviewRecord{static, animated} {
				if err := b.PutPreview(rec); err != nil {
					t.Fatalf("PutPreview(%s) error = %v", rec.Key, err)
				}
			}

			got, err := b.GetPreview("still.jpg")
			if err != nil || got == nil {
				t.Fatalf("GetPreview() = %v, %v", got, err)
			}
			if !bytes.Equal(got.Data, static.Data) || got.Animated() {
				t.Errorf("static preview = %+v", got)
			}

			got, _ = b.GetPreview("anim.gif")
			if !got.Animated() || !bytes.Equal(got.Simplified, animated.Simplified) {
				t.Errorf("animated preview = %+v", got)
			}
			if got.FileTime != 7 || got.LastVerified != 8 {
				t.Errorf("stamp = %+v, want {7 8}", got.Stamp)
			}
		})
	}
}

func TestBackend_Delete(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			b, _ := openTestBackend(t, kind)

			_ = b.PutMetadata(&MetadataRecord{Key: "x.png", Metadata: strPtr("m")})
			_ = b.PutPreview(&PreviewRecord{Key: "x.png", Data: []byte{1}})

			if err := b.Delete("x.png"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if rec, _ := b.GetMetadata("x.png"); rec != nil {
				t.Error("metadata should be gone")
			}
			if rec, _ := b.GetPreview("x.png"); rec != nil {
				t.Error("preview should be gone")
			}

			if err := b.Delete("never-existed.png"); err != nil {
				t.Errorf("Delete(missing) error = %v", err)
			}
		})
	}
}

func TestBackend_Persists(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			path := kind.Path(t.TempDir())

			b, err := Open(kind, path)
			if err != nil {
				t.Fatal(err)
			}
			_ = b.PutMetadata(&MetadataRecord{Key: "k", Metadata: strPtr("v"), Stamp: Stamp{FileTime: 1}})
			if err := b.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			b, err = Open(kind, path)
			if err != nil {
				t.Fatalf("reopen error = %v", err)
			}
			defer b.Close()

			rec, err := b.GetMetadata("k")
			if err != nil || rec == nil || rec.Metadata == nil || *rec.Metadata != "v" {
				t.Errorf("GetMetadata() after reopen = %+v, %v", rec, err)
			}
		})
	}
}

func TestBackend_SpecialCharactersInFolder(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			folder := filepath.Join(t.TempDir(), "what?ever #1 100%")
			if err := os.MkdirAll(folder, 0o755); err != nil {
				t.Fatal(err)
			}
			path := kind.Path(folder)

			b, err := Open(kind, path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if err := b.PutMetadata(&MetadataRecord{Key: "k", Metadata: strPtr("v")}); err != nil {
				t.Fatalf("PutMetadata() error = %v", err)
			}
			if err := b.Close(); err != nil {
				t.Fatal(err)
			}

			if _, err := os.Stat(path); err != nil {
				t.Errorf("store not created at %s: %v", path, err)
			}
			entries, err := os.ReadDir(filepath.Dir(folder))
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 {
				t.Errorf("entries next to folder = %d, want only the folder itself", len(entries))
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/out/2024/swarm_metadata.db", "file:/out/2024/swarm_metadata.db?"},
		{"/out/a?b/swarm_metadata.db", "file:/out/a%3Fb/swarm_metadata.db?"},
		{"/out/a#b/swarm_metadata.db", "file:/out/a%23b/swarm_metadata.db?"},
		{"/out/50%/swarm_metadata.db", "file:/out/50%25/swarm_metadata.db?"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.path); !strings.HasPrefix(got, tt.want) {
			t.Errorf("sqliteDSN(%q) = %q, want prefix %q", tt.path, got, tt.want)
		}
	}
}

func TestOpen_Corrupt(t *testing.T) {
	garbage := bytes.Repeat([]byte("this is not a database file "), 512)

	for _, kind := range allKinds {
		t.Run(string(kind), func(t *testing.T) {
			path := kind.Path(t.TempDir())
			if err := os.WriteFile(path, garbage, 0o644); err != nil {
				t.Fatal(err)
			}

			b, err := Open(kind, path)
			if err == nil {
				_ = b.Close()
				t.Fatal("Open() on garbage should fail")
			}
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Open() error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "", want: KindSQLite},
		{in: "sqlite", want: KindSQLite},
		{in: " SQLite ", want: KindSQLite},
		{in: "bolt", want: KindBolt},
		{in: "litedb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFilesAndIsStoreFile(t *testing.T) {
	dbPath := filepath.Join("dir", "swarm_metadata.db")
	if got := Files(dbPath); len(got) != 4 {
		t.Errorf("Files(sqlite) = %v, want path plus 3 sidecars", got)
	}
	if got := Files(filepath.Join("dir", "swarm_metadata.bolt")); len(got) != 1 {
		t.Errorf("Files(bolt) = %v, want just the path", got)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"swarm_metadata.db", true},
		{"swarm_metadata.db-wal", true},
		{"swarm_metadata.db-shm", true},
		{"swarm_metadata.bolt", true},
		{"image_metadata.ldb", true},
		{"image_metadata.db-journal", true},
		{"photo.png", false},
		{"swarm_metadata.db.bak", false},
	}
	for _, tt := range tests {
		if got := IsStoreFile(tt.name); got != tt.want {
			t.Errorf("IsStoreFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
