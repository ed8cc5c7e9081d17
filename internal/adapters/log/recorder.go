package log

import (
	"sync"

	"github.com/bft-labs/crashship/internal/ports"
)

// Entry is one captured log call.
type Entry struct {
	Level  string
	Msg    string
	Fields []ports.Field
}

// Recorder implements ports.Logger by keeping every call in memory.
// Tests use it to assert that non-fatal failures were reported.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(level, msg string, fields []ports.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

// Debug records a debug-level message.
func (r *Recorder) Debug(msg string, fields ...ports.Field) { r.record("debug", msg, fields) }

// Info records an info-level message.
func (r *Recorder) Info(msg string, fields ...ports.Field) { r.record("info", msg, fields) }

// Warn records a warning-level message.
func (r *Recorder) Warn(msg string, fields ...ports.Field) { r.record("warn", msg, fields) }

// Error records an error-level message.
func (r *Recorder) Error(msg string, fields ...ports.Field) { r.record("error", msg, fields) }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Count returns how many entries were recorded at level.
func (r *Recorder) Count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
