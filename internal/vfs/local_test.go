package vfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vfm/internal/vfserr"
)

func TestLocalListEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), nil, 0o644); err != nil {
		t.Fatalf("Failed to create hidden file: %v", err)
	}

	p := NewLocalProvider()
	entries, err := p.ListEntries(context.Background(), Local(dir))
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}

	if len(entries) != 4 {
		t.Fatalf("Expected 4 entries (.., sub, .hidden, file.txt), got %d", len(entries))
	}
	if entries[0].Kind != KindParent {
		t.Errorf("Expected parent entry first, got %s", entries[0].Name)
	}
	if entries[1].Name != "sub" || entries[1].Kind != KindDirectory {
		t.Errorf("Expected directory 'sub' second, got %+v", entries[1])
	}

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	file := byName["file.txt"]
	if file.Size != 5 {
		t.Errorf("Expected size 5, got %d", file.Size)
	}
	if file.CompressedSize != -1 {
		t.Errorf("Expected compressed size -1 outside archives, got %d", file.CompressedSize)
	}
	if file.Modified.IsZero() {
		t.Error("Expected a modification time")
	}
	if !strings.HasPrefix(file.Permissions, "-") {
		t.Errorf("Unexpected permissions string: %s", file.Permissions)
	}
	if !byName[".hidden"].Hidden {
		t.Error("Expected dotfile to be flagged hidden")
	}
	if byName["file.txt"].Hidden {
		t.Error("Expected plain file not to be flagged hidden")
	}
}

func TestLocalListEntriesNotFound(t *testing.T) {
	p := NewLocalProvider()
	_, err := p.ListEntries(context.Background(), Local(filepath.Join(t.TempDir(), "missing")))
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
	if !vfserr.IsKind(err, vfserr.KindNotFound) {
		t.Errorf("Expected not-found kind, got %v", err)
	}
}

func TestLocalListEntriesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewLocalProvider()
	_, err := p.ListEntries(ctx, Local(t.TempDir()))
	if !vfserr.IsKind(err, vfserr.KindCancelled) {
		t.Errorf("Expected cancelled kind, got %v", err)
	}
}

func TestLocalReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	target := Local(filepath.Join(dir, "out.txt"))
	p := NewLocalProvider()

	if err := p.WriteFile(context.Background(), target, bytes.NewReader([]byte("payload"))); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	rc, err := p.ReadFile(context.Background(), target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Expected 'payload', got '%s'", data)
	}
}

func TestLocalMetadata(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("abc"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	p := NewLocalProvider()
	e, err := p.Metadata(context.Background(), Local(filepath.Join(dir, "f")))
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if e.Kind != KindFile || e.Size != 3 {
		t.Errorf("Unexpected metadata: %+v", e)
	}

	e, err = p.Metadata(context.Background(), Local(dir))
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if e.Kind != KindDirectory {
		t.Errorf("Expected directory kind, got %v", e.Kind)
	}
}

func TestLocalCanHandle(t *testing.T) {
	p := NewLocalProvider()
	if !p.CanHandle(Local("/tmp")) {
		t.Error("Expected local provider to handle local paths")
	}
	if p.CanHandle(Sftp("h", 22, "u", "/")) {
		t.Error("Expected local provider to reject sftp paths")
	}
}
