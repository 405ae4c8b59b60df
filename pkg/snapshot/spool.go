package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// spoolThreshold is how many body bytes are held in memory before the
// buffer spills to a temporary file.
const spoolThreshold = 2 * 1024 * 1024

// spoolBuffer is a write-then-read-once buffer that keeps content in memory
// up to a threshold and transparently continues on a backing temporary file
// past it. Peak memory is therefore independent of total body size.
type spoolBuffer struct {
	mem       bytes.Buffer
	file      *os.File
	threshold int
}

func newSpoolBuffer(threshold int) *spoolBuffer {
	return &spoolBuffer{threshold: threshold}
}

func (s *spoolBuffer) Write(p []byte) (int, error) {
	if s.file == nil && s.mem.Len()+len(p) > s.threshold {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}
	if s.file != nil {
		return s.file.Write(p)
	}
	return s.mem.Write(p)
}

// spill moves the in-memory region to a fresh temporary file.
func (s *spoolBuffer) spill() error {
	f, err := os.CreateTemp("", "ctxsnap-body-*")
	if err != nil {
		return fmt.Errorf("failed to create spill file: %w", err)
	}
	if _, err := s.mem.WriteTo(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to spill body buffer: %w", err)
	}
	s.mem.Reset()
	s.file = f
	return nil
}

// WriteTo streams the accumulated content into w. It must be called at most
// once, after all writes are done.
func (s *spoolBuffer) WriteTo(w io.Writer) (int64, error) {
	if s.file != nil {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("failed to rewind spill file: %w", err)
		}
		return io.Copy(w, s.file)
	}
	return s.mem.WriteTo(w)
}

// Close releases the backing temporary file, if any.
func (s *spoolBuffer) Close() error {
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	if removeErr := os.Remove(name); err == nil {
		err = removeErr
	}
	s.file = nil
	return err
}
