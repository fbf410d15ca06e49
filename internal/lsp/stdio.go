package lsp

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/xmlls/xmlls/internal/jsonrpc"
)

type stdioReaderWriter struct {
	reader   io.Reader
	writer   io.Writer
	isClosed atomic.Bool
}

func NewStdio() jsonrpc.ReaderWriter {
	return &stdioReaderWriter{
		reader: os.Stdin,
		writer: os.Stdout,
	}
}

func (s *stdioReaderWriter) Read(p []byte) (n int, err error) {
	if s.isClosed.Load() {
		return 0, io.EOF
	}
	return s.reader.Read(p)
}

func (s *stdioReaderWriter) Write(p []byte) (n int, err error) {
	if s.isClosed.Load() {
		return 0, io.EOF
	}
	return s.writer.Write(p)
}

func (s *stdioReaderWriter) Close() error {
	s.isClosed.Store(true)
	return nil
}
