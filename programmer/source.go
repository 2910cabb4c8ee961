package programmer

import (
	"bufio"
	"io"
)

// Source is the incoming character stream the loader consumes. Available
// reports how many bytes can be read without blocking; ReadByte blocks for
// the next byte. A line-oriented console and a file both fit.
type Source interface {
	Available() int
	ReadByte() (byte, error)
}

// NewReaderSource adapts any io.Reader to a Source.
func NewReaderSource(r io.Reader) Source {
	return &readerSource{br: bufio.NewReader(r)}
}

type readerSource struct {
	br *bufio.Reader
}

func (s *readerSource) Available() int {
	if s.br.Buffered() > 0 {
		return s.br.Buffered()
	}
	if _, err := s.br.Peek(1); err != nil {
		return 0
	}
	return 1
}

func (s *readerSource) ReadByte() (byte, error) {
	return s.br.ReadByte()
}
