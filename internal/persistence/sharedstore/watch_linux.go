//go:build linux

package sharedstore

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Watch calls notify once per burst of writes to path until ctx ends. It
// watches the parent directory so atomic renames (a new inode) are seen.
func Watch(ctx context.Context, path string, debounce time.Duration, notify func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir, name := filepath.Dir(abs), filepath.Base(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return err
	}
	if _, err := unix.InotifyAddWatch(fd, dir, unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO); err != nil {
		unix.Close(fd)
		return err
	}
	go watchLoop(ctx, fd, name, debounce, notify)
	return nil
}

func watchLoop(ctx context.Context, fd int, name string, debounce time.Duration, notify func()) {
	defer unix.Close(fd)
	buf := make([]byte, 4096)

	for {
		if ctx.Err() != nil {
			return
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		nr, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		if !eventsMatch(buf[:nr], name) {
			continue
		}

		// Coalesce a burst into one notification.
		if debounce > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(debounce):
			}
		}
		drain(fd, buf)
		notify()
	}
}

// eventsMatch reports whether any inotify_event in buf names the file.
// Each event is a 16-byte header (wd, mask, cookie, len) followed by len
// bytes of NUL-padded name.
func eventsMatch(buf []byte, name string) bool {
	off := 0
	for off+unix.SizeofInotifyEvent <= len(buf) {
		nameLen := int(binary.NativeEndian.Uint32(buf[off+12 : off+16]))
		size := unix.SizeofInotifyEvent + nameLen
		if off+size > len(buf) {
			break
		}
		if nameLen > 0 && cString(buf[off+unix.SizeofInotifyEvent:off+size]) == name {
			return true
		}
		off += size
	}
	return false
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func drain(fd int, buf []byte) {
	for {
		if _, err := unix.Read(fd, buf); err != nil {
			return
		}
	}
}
