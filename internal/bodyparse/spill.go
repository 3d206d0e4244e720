package bodyparse

import (
	"bytes"
	"io"
	"os"
)

// DefaultSpillThreshold is the in-memory ceiling a SpillWriter holds
// before it spills the remainder to a temp file, per spec.md §4.3's
// "in-memory up to a threshold, then a temp file" policy.
const DefaultSpillThreshold = 1 << 20 // 1 MiB

// SpillWriter accumulates written bytes in memory until threshold is
// exceeded, then transparently continues writing to a temp file. Reader
// finalizes the writer and returns a seekable view over everything
// written so far.
type SpillWriter struct {
	threshold int
	mem       bytes.Buffer
	file      *os.File
	written   int64
}

// NewSpillWriter returns a SpillWriter with the given in-memory
// threshold. threshold <= 0 uses DefaultSpillThreshold.
func NewSpillWriter(threshold int) *SpillWriter {
	if threshold <= 0 {
		threshold = DefaultSpillThreshold
	}
	return &SpillWriter{threshold: threshold}
}

// Write implements io.Writer, spilling to a temp file once the in-memory
// threshold would be exceeded.
func (s *SpillWriter) Write(p []byte) (int, error) {
	s.written += int64(len(p))

	if s.file != nil {
		return s.file.Write(p)
	}

	if s.mem.Len()+len(p) <= s.threshold {
		return s.mem.Write(p)
	}

	f, err := os.CreateTemp("", "embedhttp-body-*")
	if err != nil {
		return 0, err
	}
	if s.mem.Len() > 0 {
		if _, err := f.Write(s.mem.Bytes()); err != nil {
			f.Close()
			os.Remove(f.Name())
			return 0, err
		}
		s.mem.Reset()
	}
	s.file = f
	return s.file.Write(p)
}

// Len reports the number of bytes written so far.
func (s *SpillWriter) Len() int64 {
	return s.written
}

// Reader finalizes the writer, returning a seekable stream positioned at
// the start of the written data. The returned ReadSeekCloser must be
// closed by the caller to release the temp file, if one was created.
func (s *SpillWriter) Reader() (io.ReadSeekCloser, error) {
	if s.file == nil {
		return &memReadSeekCloser{Reader: bytes.NewReader(s.mem.Bytes())}, nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return &fileReadSeekCloser{file: s.file}, nil
}

type memReadSeekCloser struct {
	*bytes.Reader
}

func (m *memReadSeekCloser) Close() error { return nil }

type fileReadSeekCloser struct {
	file *os.File
}

func (f *fileReadSeekCloser) Read(p []byte) (int, error)               { return f.file.Read(p) }
func (f *fileReadSeekCloser) Seek(off int64, whence int) (int64, error) { return f.file.Seek(off, whence) }
func (f *fileReadSeekCloser) Close() error {
	name := f.file.Name()
	f.file.Close()
	return os.Remove(name)
}
