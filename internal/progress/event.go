// Package progress carries loop output to a live display.
package progress

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// Status indicates the state of the operation an event describes.
type Status string

// Log output is StatusRunning; iteration outcomes are StatusDone or
// StatusError.
const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event is one line of progress.
type Event struct {
	Message   string
	Status    Status
	Timestamp time.Time
}

// Emitter receives events.
type Emitter interface {
	Emit(ev Event)
}

// FuncEmitter adapts a function to Emitter.
type FuncEmitter func(ev Event)

// Emit calls f.
func (f FuncEmitter) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	f(ev)
}

// Writer is an io.Writer that emits one event per complete line. Partial
// lines are held until a newline arrives or Flush is called.
type Writer struct {
	emitter Emitter

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewWriter returns a Writer that forwards lines to e.
func NewWriter(e Emitter) *Writer {
	return &Writer{emitter: e}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return
	}
	line := w.buf.String()
	w.buf.Reset()
	w.emit(line)
}

func (w *Writer) emit(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	w.emitter.Emit(Event{Message: line, Status: StatusRunning})
}
