package outputstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFrameZeroPadsName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := New(dir, ".png", nil)

	path, err := s.WriteFrame(5, 250, "5.png", []byte("pixels"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "005.png" {
		t.Fatalf("got %q, want 005.png", filepath.Base(path))
	}

	got, err := os.ReadFile(path)
	if err != nil || string(got) != "pixels" {
		t.Fatalf("got (%q,%v), want (pixels,nil)", got, err)
	}
}

func TestWriteFrameCanonicalizesExtensionFromWorkerName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := New(dir, ".png", nil)

	path, err := s.WriteFrame(5, 250, "5.exr", []byte("pixels"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "005.exr" {
		t.Fatalf("got %q, want 005.exr (extension from the worker-supplied name, not the store's configured .png)", filepath.Base(path))
	}
}

func TestWriteFrameFallsBackToConfiguredExtensionWhenNameHasNone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := New(dir, ".png", nil)

	path, err := s.WriteFrame(5, 250, "", []byte("pixels"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "005.png" {
		t.Fatalf("got %q, want 005.png", filepath.Base(path))
	}
}

func TestCleanupRemovesFramesAndEmptyDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := New(dir, ".png", nil)

	if _, err := s.WriteFrame(1, 10, "1.png", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteFrame(2, 10, "2.png", []byte("b")); err != nil {
		t.Fatal(err)
	}
	// a non-matching file should survive cleanup
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Cleanup(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "01.png")); !os.IsNotExist(err) {
		t.Fatal("expected 01.png to be removed")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Fatal("expected directory to survive while notes.txt remains")
	}
}
