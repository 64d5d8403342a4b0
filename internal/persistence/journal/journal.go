// Package journal appends office events to daily zstd-compressed JSONL files.
// It is the durable record; the sqlite index is a queryable copy.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry is one journaled event. Fields beyond Kind depend on the event.
type Entry struct {
	At     time.Time       `json:"at"`
	Kind   string          `json:"kind"`
	State  string          `json:"state,omitempty"`
	Agent  int             `json:"agent,omitempty"`
	Action string          `json:"action,omitempty"`
	Source string          `json:"source,omitempty"`
	Digest string          `json:"digest,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

const (
	KindPresence = "presence"
	KindAgent    = "agent"
	KindLayout   = "layout"
)

type Writer struct {
	dir    string
	prefix string
	now    func() time.Time

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
}

func New(dir, prefix string) *Writer {
	return &Writer{dir: dir, prefix: prefix, now: time.Now}
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.closeLocked()
	if w.enc != nil {
		_ = w.enc.Close()
		w.enc = nil
	}
	return err
}

// Append writes one entry as its own complete zstd frame, so a file left
// open by a crashed process stays readable and later runs may append to it.
func (w *Writer) Append(e Entry) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if e.At.IsZero() {
		e.At = w.now()
	}
	day := e.At.UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.f.Write(w.enc.EncodeAll(b, nil))
	return err
}

func (w *Writer) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathFor(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if w.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return err
		}
		w.enc = enc
	}
	w.f = f
	w.curDay = day
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.f != nil {
		err = w.f.Close()
		w.f = nil
	}
	w.curDay = ""
	return err
}

func (w *Writer) pathFor(day string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, day))
}

// ReadAll decodes every journal file in dir with the given prefix, oldest
// file first. Each entry is a separate zstd frame and the decoder reads the
// concatenation as one stream. A torn final frame stops that file only; the
// entries before it are still returned, along with the error.
func ReadAll(dir, prefix string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range des {
		n := de.Name()
		if !de.IsDir() && strings.HasPrefix(n, prefix+"-") && strings.HasSuffix(n, ".jsonl.zst") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	var (
		out  []Entry
		errs []error
	)
	for _, n := range names {
		entries, err := readFile(filepath.Join(dir, n))
		out = append(out, entries...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n, err))
		}
	}
	return out, errors.Join(errs...)
}

func readFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	jd := json.NewDecoder(dec)
	for {
		var e Entry
		if err := jd.Decode(&e); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
