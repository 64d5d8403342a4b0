// Package sharedstore is the layout file shared by every running instance.
// An instance must not treat the change notification caused by its own
// write as an external change.
package sharedstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/umfhero/pixel-agents/internal/office/layout"
)

type Mode int

const (
	ModeNormal Mode = iota
	// ModeAwaitSelfEcho: the next change notification is our own write.
	ModeAwaitSelfEcho
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeAwaitSelfEcho:
		return "await-self-echo"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

var ErrNotExist = errors.New("shared layout does not exist")

type Store struct {
	path string

	mu   sync.Mutex
	mode Mode
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// ReadRaw returns the file content without loading it.
func (s *Store) ReadRaw() ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	return b, err
}

// Read loads the current file through the migrator.
func (s *Store) Read() (*layout.Layout, error) {
	b, err := s.ReadRaw()
	if err != nil {
		return nil, err
	}
	return layout.Load(b)
}

// Write serializes l and replaces the file. The store enters
// ModeAwaitSelfEcho before any byte is written and returns to ModeNormal if
// the write fails.
func (s *Store) Write(l *layout.Layout) ([]byte, error) {
	data, err := layout.Serialize(l)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.mode = ModeAwaitSelfEcho
	s.mu.Unlock()

	if err := writeAtomic(s.path, data); err != nil {
		s.mu.Lock()
		s.mode = ModeNormal
		s.mu.Unlock()
		return nil, err
	}
	return data, nil
}

// Changed handles one change notification. It returns the new layout and
// true when the change is external. The first notification after our own
// write is consumed and not delivered.
func (s *Store) Changed() (*layout.Layout, bool, error) {
	s.mu.Lock()
	if s.mode == ModeAwaitSelfEcho {
		s.mode = ModeNormal
		s.mu.Unlock()
		return nil, false, nil
	}
	s.mu.Unlock()

	l, err := s.Read()
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
