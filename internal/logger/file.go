package logger

import (
	"bufio"
	"errors"
	"os"
	"sync"
	"time"
)

const (
	// DefaultFlushInterval bounds how long a file record may sit in the buffer.
	DefaultFlushInterval = 5 * time.Second

	logFileBufferSize = 32 * 1024
	logFileMode       = 0o600
)

var errLogFileClosed = errors.New("log file closed")

// logFile is an append-only, buffered log file flushed on a timer.
type logFile struct {
	mu   sync.Mutex
	f    *os.File
	buf  *bufio.Writer
	stop chan struct{}
	done chan struct{}

	stopOnce sync.Once
}

// openLogFile opens path for appending, creating parent directories.
// A non-positive interval disables the background flush.
func openLogFile(path string, interval time.Duration) (*logFile, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, err
	}

	lf := &logFile{
		f:    f,
		buf:  bufio.NewWriterSize(f, logFileBufferSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if interval > 0 {
		go lf.flushEvery(interval)
	} else {
		close(lf.done)
	}
	return lf, nil
}

func (lf *logFile) flushEvery(interval time.Duration) {
	defer close(lf.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-lf.stop:
			return
		case <-t.C:
			// a failing flush resurfaces on the next Write
			_ = lf.Flush()
		}
	}
}

func (lf *logFile) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.buf == nil {
		return 0, errLogFileClosed
	}
	return lf.buf.Write(p)
}

// Flush hands buffered bytes to the OS without fsync.
func (lf *logFile) Flush() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.buf == nil {
		return nil
	}
	return lf.buf.Flush()
}

// Close stops the flusher, then flushes, syncs and closes the file.
func (lf *logFile) Close() error {
	lf.mu.Lock()
	if lf.buf == nil {
		lf.mu.Unlock()
		return nil
	}
	lf.mu.Unlock()

	lf.stopOnce.Do(func() { close(lf.stop) })
	<-lf.done

	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.buf == nil {
		return nil
	}
	err := errors.Join(lf.buf.Flush(), lf.f.Sync(), lf.f.Close())
	lf.buf = nil
	lf.f = nil
	return err
}
