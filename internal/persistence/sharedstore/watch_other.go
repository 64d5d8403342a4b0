//go:build !linux

package sharedstore

import (
	"context"
	"os"
	"time"
)

// Watch polls path's size and mtime. Used where inotify is unavailable.
func Watch(ctx context.Context, path string, debounce time.Duration, notify func()) error {
	interval := 4 * debounce
	if interval < 200*time.Millisecond {
		interval = 200 * time.Millisecond
	}
	last := statKey(path)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			cur := statKey(path)
			if cur != last {
				last = cur
				notify()
			}
		}
	}()
	return nil
}

type fileKey struct {
	size  int64
	mtime time.Time
}

func statKey(path string) fileKey {
	st, err := os.Stat(path)
	if err != nil {
		return fileKey{}
	}
	return fileKey{size: st.Size(), mtime: st.ModTime()}
}
