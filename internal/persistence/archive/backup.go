// Package archive keeps zstd-compressed copies of the shared layout taken
// before each overwrite.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	filePrefix = "layout-"
	fileSuffix = ".json.zst"
	stampFmt   = "20060102T150405.000000000Z"
)

type Entry struct {
	Path string
	At   time.Time
	Size int64
}

var now = time.Now

// Backup compresses content into dir and prunes the oldest backups beyond
// keep (keep <= 0 keeps everything). It returns the new file's path.
func Backup(dir string, content []byte, keep int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stamp := now().UTC().Format(stampFmt)
	path := filepath.Join(dir, filePrefix+stamp+fileSuffix)
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s%s-%d%s", filePrefix, stamp, i, fileSuffix))
	}

	tmp, err := os.CreateTemp(dir, ".backup-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = tmp.Close()
		return "", err
	}
	if _, err := enc.Write(content); err != nil {
		_ = enc.Close()
		_ = tmp.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}

	if keep > 0 {
		if _, err := Prune(dir, keep); err != nil {
			return path, fmt.Errorf("prune backups: %w", err)
		}
	}
	return path, nil
}

// List returns the backups in dir, newest first. A missing dir is empty.
func List(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		at, ok := parseStamp(name)
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Path: filepath.Join(dir, name), At: at, Size: info.Size()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.After(out[j].At)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

// Prune deletes all but the newest keep backups and returns what it removed.
func Prune(dir string, keep int) ([]string, error) {
	entries, err := List(dir)
	if err != nil {
		return nil, err
	}
	if keep <= 0 || len(entries) <= keep {
		return nil, nil
	}
	var removed []string
	for _, e := range entries[keep:] {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, e.Path)
	}
	return removed, nil
}

// Restore returns the decompressed content of a backup.
func Restore(path string) ([]byte, error) {
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

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		return nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}
	return buf.Bytes(), nil
}

func parseStamp(name string) (time.Time, bool) {
	s := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if i := strings.LastIndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	at, err := time.Parse(stampFmt, s)
	return at, err == nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
