package logger

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

const (
	maxBufferedLogLineSize = 1024 * 16 // 16 kB of memory
)

// LogWriter forwards line-oriented output, such as a standard library
// *log.Logger, to a structured logger at a fixed level.
type LogWriter struct {
	mu     sync.Mutex
	logger log.Logger
	level  slog.Level
	// should never contain new lines
	buffer []byte
}

// NewLogWriter creates a writer that emits each line written to it as one
// record on logger.
func NewLogWriter(logger log.Logger, level slog.Level) *LogWriter {
	return &LogWriter{
		logger: logger,
		level:  level,
		buffer: make([]byte, 0, maxBufferedLogLineSize),
	}
}

// flushBuffer emits the buffered line. Blank lines are dropped.
func (lw *LogWriter) flushBuffer() {
	if len(lw.buffer) == 0 {
		return
	}

	msg := strings.TrimRight(string(lw.buffer), "\r \t")
	lw.buffer = lw.buffer[:0]
	if msg == "" {
		return
	}
	lw.logger.Write(lw.level, msg)
}

// Write splits p into lines and logs each one. A partial trailing line is held
// until the next newline, Close, or until it exceeds the buffer size.
func (lw *LogWriter) Write(p []byte) (n int, err error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	start := 0
	for i, b := range p {
		if b == '\n' {
			lw.buffer = append(lw.buffer, p[start:i]...)
			lw.flushBuffer()
			start = i + 1
		}
	}

	if start < len(p) {
		remaining := p[start:]
		for len(remaining) > 0 {
			if len(lw.buffer)+len(remaining) > maxBufferedLogLineSize {
				spaceLeft := maxBufferedLogLineSize - len(lw.buffer)
				lw.buffer = append(lw.buffer, remaining[:spaceLeft]...)

				// Should only be called mid-line if line overflows max buffered size
				lw.flushBuffer()
				remaining = remaining[spaceLeft:]
			} else {
				lw.buffer = append(lw.buffer, remaining...)
				break
			}
		}
	}

	return len(p), nil
}

func (lw *LogWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.flushBuffer()
	return nil
}

var _ io.WriteCloser = (*LogWriter)(nil)
