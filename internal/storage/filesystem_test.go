package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain", key: "job/result.json", want: "job/result.json"},
		{name: "leading slash", key: "/job/thumbnail.png", want: "job/thumbnail.png"},
		{name: "backslashes", key: `job\frames\frame_01.png`, want: "job/frames/frame_01.png"},
		{name: "traversal", key: "../etc/passwd", wantErr: true},
		{name: "parent only", key: "..", wantErr: true},
		{name: "empty", key: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeKey(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.key, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("sanitizeKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestWriteJSONLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, "/generated/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := store.WriteJSON(ctx, "job-1/result.json", map[string]int{"n": i}); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(root, "job-1"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "result.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected directory contents: %v", names)
	}
	raw, err := store.ReadFile("job-1/result.json")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc map[string]int
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if doc["n"] != 2 {
		t.Fatalf("expected last write to win, got %v", doc)
	}
	if got := store.PublicPath("job-1/result.json"); got != "/generated/job-1/result.json" {
		t.Fatalf("PublicPath = %q", got)
	}
}

func TestConcurrentWritesAlwaysReadable(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "/generated")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	payload := map[string]string{"status": "completed", "pad": string(make([]byte, 4096))}
	if _, err := store.WriteJSON(ctx, "j/result.json", payload); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.WriteJSON(ctx, "j/result.json", payload)
		}()
	}
	for i := 0; i < 50; i++ {
		raw, err := store.ReadFile("j/result.json")
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		var doc map[string]string
		if err := json.Unmarshal(raw, &doc); err != nil {
			t.Fatalf("observed partial result file: %v", err)
		}
	}
	wg.Wait()
}

func TestWriteHonoursCancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "/generated")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "j/a.bin", []byte("x")); err == nil {
		t.Fatal("expected context error")
	}
	if store.Exists("j/a.bin") {
		t.Fatal("file should not exist after cancelled write")
	}
}
