package sharedstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

func sample(fill tiles.Kind) *layout.Layout {
	l := layout.New(3, 2, fill)
	l.Furniture = append(l.Furniture, layout.Placement{UID: "c1", Type: "chair", Col: 1, Row: 1})
	return l
}

// Own write is swallowed once; a later write by another instance is
// delivered exactly once with its content.
func TestSelfWriteSuppression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	a := New(path)
	b := New(path)

	layoutA := sample(tiles.Floor1)
	if _, err := a.Write(layoutA); err != nil {
		t.Fatalf("write A: %v", err)
	}
	if a.Mode() != ModeAwaitSelfEcho {
		t.Fatalf("mode=%s after write", a.Mode())
	}
	got, external, err := a.Changed()
	if err != nil || external || got != nil {
		t.Fatalf("own echo delivered: external=%v l=%v err=%v", external, got, err)
	}
	if a.Mode() != ModeNormal {
		t.Fatalf("mode=%s after echo", a.Mode())
	}

	layoutB := sample(tiles.Floor4)
	if _, err := b.Write(layoutB); err != nil {
		t.Fatalf("write B: %v", err)
	}
	got, external, err = a.Changed()
	if err != nil || !external {
		t.Fatalf("external change not delivered: external=%v err=%v", external, err)
	}
	if !reflect.DeepEqual(got, layoutB) {
		t.Fatalf("delivered layout differs from B")
	}
}

func TestWrite_FailureRestoresNormal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The parent of the layout path is a regular file, so the write fails.
	s := New(filepath.Join(blocker, "layout.json"))
	if _, err := s.Write(sample(tiles.Floor1)); err == nil {
		t.Fatalf("write into a file path succeeded")
	}
	if s.Mode() != ModeNormal {
		t.Fatalf("mode=%s after failed write", s.Mode())
	}
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "layout.json")
	s := New(path)
	if s.Exists() {
		t.Fatalf("exists before write")
	}
	if _, err := s.Read(); !errors.Is(err, ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
	want := sample(tiles.Floor2)
	if _, err := s.Write(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("read mismatch")
	}

	if err := os.WriteFile(path, []byte(`{"version":99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Changed(); err == nil {
		t.Fatalf("future-version file delivered")
	}
}

func TestWatch_OneNotificationPerWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count atomic.Int32
	fired := make(chan struct{}, 8)
	if err := Watch(ctx, path, 20*time.Millisecond, func() {
		count.Add(1)
		fired <- struct{}{}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	s := New(path)
	if _, err := s.Write(sample(tiles.Floor1)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("no notification within 3s")
	}
	time.Sleep(500 * time.Millisecond)
	if n := count.Load(); n != 1 {
		t.Fatalf("notifications=%d want 1", n)
	}
}
