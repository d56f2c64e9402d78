package capture

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/livp123/pktstream/internal/utils/fileutil"
	pkgerrors "github.com/livp123/pktstream/pkg/errors"
	"go.uber.org/zap"
)

const minReadChunk = 64 * 1024

// Follower reads lines appended to a growing file, tracking the byte offset
// of the last complete line it handed out. A trailing line without a newline
// is left unread until its terminator arrives.
// Follower 增量读取文件新追加的完整行，并记录已消费的字节偏移。
type Follower struct {
	path    string
	file    *os.File
	offset  int64
	maxLine int
	buf     []byte
	watcher *fsnotify.Watcher
	log     *zap.SugaredLogger
}

// ReadResult is what one ReadLines call consumed.
type ReadResult struct {
	Lines     []string
	Oversized int   // unterminated runs longer than maxLine that were skipped
	Bytes     int64 // bytes the offset advanced by
}

// OpenFollower opens path from offset 0, creating an empty file when it is absent.
// With watch set, fsnotify write events cut the poll wait short; if the watcher
// cannot be created the follower silently polls.
// OpenFollower 从偏移 0 打开文件，文件不存在时创建空文件。
func OpenFollower(path string, maxLine int, watch bool, log *zap.SugaredLogger) (*Follower, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if maxLine <= 0 {
		maxLine = minReadChunk
	}
	if err := fileutil.EnsureFile(path); err != nil {
		return nil, pkgerrors.NewReadError(path, err)
	}
	f, err := os.Open(filepath.Clean(path)) // #nosec G304 // path comes from operator config
	if err != nil {
		return nil, pkgerrors.NewReadError(path, err)
	}

	chunk := maxLine + 1
	if chunk < minReadChunk {
		chunk = minReadChunk
	}
	fl := &Follower{
		path:    path,
		file:    f,
		maxLine: maxLine,
		buf:     make([]byte, chunk),
		log:     log,
	}

	if watch {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(path); err == nil {
				fl.watcher = w
			} else {
				w.Close()
			}
		}
		if err != nil {
			log.Debugf("fsnotify unavailable for %s, polling only: %v", path, err)
		}
	}
	return fl, nil
}

// Offset returns the number of bytes consumed so far.
func (f *Follower) Offset() int64 {
	return f.offset
}

// ReadLines returns every complete line appended since the previous call, in
// file order, without their terminators. Blank lines are consumed but not returned.
// ReadLines 返回上次调用以来追加的所有完整行。
func (f *Follower) ReadLines() (ReadResult, error) {
	var res ReadResult

	info, err := f.file.Stat()
	if err != nil {
		return res, pkgerrors.NewReadError(f.path, err)
	}
	size := info.Size()
	if size < f.offset {
		f.log.Warnf("🔄 %s shrank (size %d < offset %d), reading from start", f.path, size, f.offset)
		f.offset = 0
	}

	for f.offset < size {
		want := size - f.offset
		if want > int64(len(f.buf)) {
			want = int64(len(f.buf))
		}
		n, err := f.file.ReadAt(f.buf[:want], f.offset)
		if err != nil && err != io.EOF {
			return res, pkgerrors.NewReadError(f.path, err)
		}
		if n == 0 {
			break
		}
		data := f.buf[:n]

		last := bytes.LastIndexByte(data, '\n')
		if last < 0 {
			if n > f.maxLine {
				// no terminator within maxLine bytes: drop the run
				f.advance(int64(n), &res)
				res.Oversized++
				continue
			}
			// partial trailing line, wait for the rest
			break
		}

		for _, line := range bytes.Split(data[:last], []byte{'\n'}) {
			line = bytes.TrimSuffix(line, []byte{'\r'})
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			res.Lines = append(res.Lines, string(line))
		}
		f.advance(int64(last+1), &res)

		if err == io.EOF {
			break
		}
	}
	return res, nil
}

func (f *Follower) advance(n int64, res *ReadResult) {
	f.offset += n
	res.Bytes += n
}

// Wait blocks for d, returning early when the file is written to or ctx ends.
// Wait 等待 d，文件写入或 ctx 结束时提前返回。
func (f *Follower) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if f.watcher != nil {
		events = f.watcher.Events
		errs = f.watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Write) {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			f.log.Debugf("fsnotify error on %s: %v", f.path, err)
		}
	}
}

// Close releases the file handle and watcher.
func (f *Follower) Close() error {
	if f.watcher != nil {
		f.watcher.Close()
	}
	return f.file.Close()
}
