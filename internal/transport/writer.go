package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Writer delivers messages as "recipient<TAB>text" lines on an io.Writer.
// Concurrent sends are serialized so lines never interleave.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter returns a Writer on out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Send writes one line. Newlines inside text are flattened to spaces.
func (w *Writer) Send(ctx context.Context, recipientID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	line := strings.ReplaceAll(text, "\n", " ")
	if _, err := fmt.Fprintf(w.out, "%s\t%s\n", recipientID, line); err != nil {
		return fmt.Errorf("writing message for %s: %w", recipientID, err)
	}
	return nil
}
