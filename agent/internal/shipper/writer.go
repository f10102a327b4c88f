package shipper

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterShipper writes each envelope as one line to w instead of sending it.
// It backs `run --dry-run`.
type WriterShipper struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a WriterShipper writing to w.
func NewWriter(w io.Writer) *WriterShipper {
	return &WriterShipper{w: w}
}

// Ship writes body followed by a newline.
func (s *WriterShipper) Ship(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(append(body[:len(body):len(body)], '\n')); err != nil {
		return fmt.Errorf("shipper: write envelope: %w", err)
	}
	return nil
}
