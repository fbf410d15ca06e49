package jsonrpc

import (
	"io"
)

var _ MessageReaderWriter = (*FnMessageReaderWriter)(nil)

// ReaderWriter is a byte stream carrying framed messages, such as stdio. The framing (Content-Length headers or
// one message per line) is detected on the first message.
type ReaderWriter interface {
	io.Reader
	io.Writer
	io.Closer
}

// MessageReaderWriter transports whole messages, no framing is applied by the session.
type MessageReaderWriter interface {
	//ReadMessage reads an entire message and returns it, the returned bytes should not be modified by the caller.
	ReadMessage() (msg []byte, err error)

	//WriteMessage writes an entire message, the written bytes should not be modified by the implementation.
	WriteMessage(msg []byte) error

	io.Closer
}

type FnMessageReaderWriter struct {
	ReadMessageFn  func() (msg []byte, err error)
	WriteMessageFn func(msg []byte) error

	// optional
	CloseFn func() error
}

func (rw FnMessageReaderWriter) ReadMessage() (msg []byte, err error) {
	return rw.ReadMessageFn()
}

func (rw FnMessageReaderWriter) WriteMessage(msg []byte) error {
	return rw.WriteMessageFn(msg)
}

func (rw FnMessageReaderWriter) Close() error {
	if rw.CloseFn == nil {
		return nil
	}
	return rw.CloseFn()
}
