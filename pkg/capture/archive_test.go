package capture

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestArchiver_SaveRequest(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	a := NewArchiver(dir).WithClock(fixedClock(at))

	path, err := a.SaveRequest([]byte("GET / HTTP/1.1\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "2024-03-09-14-05-07.bin"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "GET / HTTP/1.1\r\n\r\n" {
		t.Errorf("content = %q", got)
	}
}

func TestArchiver_SaveEmptyRequest(t *testing.T) {
	a := NewArchiver(t.TempDir())
	path, err := a.SaveRequest(nil)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("empty request must still be written: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("size = %d, want 0", info.Size())
	}
}

func TestArchiver_SaveImageAlwaysJPG(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	a := NewArchiver(dir).WithClock(fixedClock(at))

	path, err := a.SaveImage([]byte("\x89PNG"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "image_20240309140507.jpg"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, []byte("\x89PNG")) {
		t.Errorf("content = %q", got)
	}
}

func TestArchiver_SameSecondOverwrites(t *testing.T) {
	dir := t.TempDir()
	a := NewArchiver(dir).WithClock(fixedClock(time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)))

	first, err := a.SaveRequest([]byte("first"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.SaveRequest([]byte("second"))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("same-second captures should share a name: %q vs %q", first, second)
	}
	got, _ := os.ReadFile(second)
	if string(got) != "second" {
		t.Errorf("last write should win, got %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("got %d files, want 1", len(entries))
	}
}

func TestArchiver_MissingDir(t *testing.T) {
	a := NewArchiver(filepath.Join(t.TempDir(), "missing"))
	if _, err := a.SaveRequest([]byte("x")); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Errorf("second call should be a no-op: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}
