package encoding

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

type Stream interface {
	Order() binary.ByteOrder
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

type offsetStream struct {
	r     io.ReaderAt
	order binary.ByteOrder
	off   int64
}

// NewStream returns a Stream positioned at off in r. Writes require r to
// also implement io.WriterAt.
func NewStream(r io.ReaderAt, order binary.ByteOrder, off int64) Stream {
	return &offsetStream{r, order, off}
}

func (s *offsetStream) Order() binary.ByteOrder {
	return s.order
}

func (s *offsetStream) Offset() uint64 {
	return uint64(s.off)
}

func (s *offsetStream) Skip(n int) error {
	s.off += int64(n)
	return nil
}

func (s *offsetStream) Read(b []byte) (int, error) {
	n, err := s.r.ReadAt(b, s.off)
	s.off += int64(n)
	if err == nil && n < len(b) {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (s *offsetStream) Write(b []byte) (int, error) {
	w, ok := s.r.(io.WriterAt)
	if !ok {
		return 0, errors.WithStack(ErrReadOnly)
	}
	n, err := w.WriteAt(b, s.off)
	s.off += int64(n)
	return n, err
}
