package sink

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiBlue   = "\x1b[34m"
	ansiOrange = "\x1b[38;5;208m"
)

// Writer renders lines to an io.Writer, one per line, optionally coloured
// by Kind: producer green, consumer blue, match orange.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewWriter creates a Writer rendering to w.
func NewWriter(w io.Writer, color bool) *Writer {
	return &Writer{w: w, color: color}
}

// Emit writes msg followed by a newline.
func (w *Writer) Emit(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.color {
		fmt.Fprintln(w.w, msg)
		return
	}
	var code string
	switch Classify(msg) {
	case KindProducer:
		code = ansiGreen
	case KindConsumer:
		code = ansiBlue
	case KindMatch:
		code = ansiOrange
	default:
		fmt.Fprintln(w.w, msg)
		return
	}
	fmt.Fprintln(w.w, code+msg+ansiReset)
}

// Slog forwards lines to a structured logger at debug level, tagged with
// their kind.
type Slog struct {
	logger *slog.Logger
}

// NewSlog creates a Slog sink. A nil logger uses slog.Default().
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

// Emit logs msg.
func (s *Slog) Emit(msg string) {
	s.logger.Debug("event", slog.String("kind", Classify(msg).String()), slog.String("line", msg))
}
