package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriter_AppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "office")
	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	if err := w.Append(Entry{At: day1, Kind: KindPresence, State: "typing"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(Entry{At: day1.Add(time.Second), Kind: KindAgent, Action: "created", Agent: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(Entry{At: day2, Kind: KindLayout, Action: "save", Source: "local", Digest: "abc"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening the same day appends more frames to the same file.
	w = New(dir, "office")
	if err := w.Append(Entry{At: day2.Add(time.Minute), Kind: KindPresence, State: "idle"}); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	_ = w.Close()

	got, err := ReadAll(dir, "office")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("entries=%d want 4: %+v", len(got), got)
	}
	if got[0].State != "typing" || got[1].Agent != 1 || got[2].Digest != "abc" || got[3].State != "idle" {
		t.Fatalf("entries out of order: %+v", got)
	}
}

func TestWriter_UnclosedFileStaysReadable(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	// w1 is never closed, as after a crash.
	w1 := New(dir, "office")
	for i := 1; i <= 3; i++ {
		if err := w1.Append(Entry{At: at.Add(time.Duration(i) * time.Second), Kind: KindAgent, Action: "created", Agent: i}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	w2 := New(dir, "office")
	if err := w2.Append(Entry{At: at.Add(time.Minute), Kind: KindPresence, State: "typing"}); err != nil {
		t.Fatalf("append after restart: %v", err)
	}
	_ = w2.Close()

	got, err := ReadAll(dir, "office")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("entries=%d want 4: %+v", len(got), got)
	}
	if got[0].Agent != 1 || got[2].Agent != 3 || got[3].State != "typing" {
		t.Fatalf("entries out of order: %+v", got)
	}
}

func TestReadAll_CorruptTailKeepsEarlierEntries(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	w := New(dir, "office")
	for _, s := range []string{"typing", "idle"} {
		if err := w.Append(Entry{At: at, Kind: KindPresence, State: s}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = w.Close()

	path := filepath.Join(dir, "office-2026-01-02.jsonl.zst")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Bytes of a half-written record that never became a frame.
	_, _ = f.Write([]byte(`{"at":"2026-01-02T10:00:00Z"`))
	_ = f.Close()

	got, err := ReadAll(dir, "office")
	if err == nil {
		t.Fatalf("expected an error for the corrupt tail")
	}
	if len(got) != 2 || got[0].State != "typing" || got[1].State != "idle" {
		t.Fatalf("entries=%+v", got)
	}
}

func TestReadAll_MissingDir(t *testing.T) {
	got, err := ReadAll(t.TempDir()+"/nope", "office")
	if err != nil || got != nil {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestNilWriter(t *testing.T) {
	var w *Writer
	if err := w.Append(Entry{Kind: KindPresence}); err != nil {
		t.Fatalf("nil append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
