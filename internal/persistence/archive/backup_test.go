package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func withClock(t *testing.T, start time.Time) func() {
	t.Helper()
	cur := start
	now = func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
	return func() { now = time.Now }
}

func TestBackup_RestoreRoundTrip(t *testing.T) {
	defer withClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))()
	dir := filepath.Join(t.TempDir(), "backups")
	want := []byte(`{"version":2,"cols":1,"rows":1}` + "\n")

	path, err := Backup(dir, want, 5)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if filepath.Ext(path) != ".zst" {
		t.Fatalf("path=%s", path)
	}
	got, err := Restore(path)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("restored=%q want %q", got, want)
	}
}

func TestBackup_PrunesOldest(t *testing.T) {
	defer withClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))()
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 5; i++ {
		p, err := Backup(dir, []byte{byte('a' + i)}, 3)
		if err != nil {
			t.Fatalf("Backup %d: %v", i, err)
		}
		paths = append(paths, p)
	}
	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries=%d want 3", len(entries))
	}
	if entries[0].Path != paths[4] || entries[2].Path != paths[2] {
		t.Fatalf("order: %+v", entries)
	}
	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Fatalf("oldest backup still present")
	}
	if !entries[0].At.After(entries[1].At) {
		t.Fatalf("timestamps not descending")
	}
}

func TestBackup_SameInstant(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	dir := t.TempDir()
	a, err := Backup(dir, []byte("a"), 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Backup(dir, []byte("b"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("second backup overwrote the first")
	}
	entries, _ := List(dir)
	if len(entries) != 2 {
		t.Fatalf("entries=%d", len(entries))
	}
}

func TestList_IgnoresForeignFilesAndMissingDir(t *testing.T) {
	entries, err := List(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(entries) != 0 {
		t.Fatalf("missing dir: %v %v", entries, err)
	}
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "layout-garbage.json.zst"), []byte("x"), 0o644)
	entries, err = List(dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("foreign files listed: %v %v", entries, err)
	}
}

func TestRestore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "layout-20260301T120000.000000000Z.json.zst")
	if err := os.WriteFile(p, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Restore(p); err == nil {
		t.Fatalf("corrupt backup restored")
	}
}
