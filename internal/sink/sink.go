// Package sink carries the human-readable event stream of a session. The
// core only ever appends to a LogSink; rendering is the sink's business.
package sink

import (
	"strings"
	"sync"
)

// LogSink is an append-only, multiple-writer-safe channel of event lines.
type LogSink interface {
	Emit(msg string)
}

// Func adapts a plain function to LogSink.
type Func func(msg string)

// Emit calls f(msg).
func (f Func) Emit(msg string) { f(msg) }

// Discard drops every line.
var Discard LogSink = Func(func(string) {})

// Kind classifies an event line by its leading tag for display.
type Kind int

const (
	KindOther Kind = iota
	KindProducer
	KindConsumer
	KindMatch
)

func (k Kind) String() string {
	switch k {
	case KindProducer:
		return "prod"
	case KindConsumer:
		return "cons"
	case KindMatch:
		return "match"
	}
	return "other"
}

// Classify returns the display kind of msg: lines starting with "[PROD"
// or "[CONS", or containing "[MATCH]".
func Classify(msg string) Kind {
	switch {
	case strings.HasPrefix(msg, "[PROD"):
		return KindProducer
	case strings.HasPrefix(msg, "[CONS"):
		return KindConsumer
	case strings.Contains(msg, "[MATCH]"):
		return KindMatch
	}
	return KindOther
}

type multi []LogSink

func (m multi) Emit(msg string) {
	for _, s := range m {
		s.Emit(msg)
	}
}

// Multi fans every line out to all sinks in order. Nil sinks are skipped.
func Multi(sinks ...LogSink) LogSink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Memory keeps the most recent lines in memory. A limit of 0 keeps every line.
type Memory struct {
	mu    sync.Mutex
	limit int
	lines []string
}

// NewMemory creates a Memory sink retaining at most limit lines.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// Emit records msg, evicting the oldest line when the limit is reached.
func (m *Memory) Emit(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, msg)
	if m.limit > 0 && len(m.lines) > m.limit {
		m.lines = append(m.lines[:0:0], m.lines[len(m.lines)-m.limit:]...)
	}
}

// Lines returns a copy of the retained lines, oldest first.
func (m *Memory) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Tail returns up to the last n retained lines.
func (m *Memory) Tail(n int) []string {
	lines := m.Lines()
	if n >= 0 && len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}
