package jsonrpc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	CONTENT_LENGTH_HEADER = "content-length:"
	MAX_MESSAGE_SIZE      = 64 << 20
)

// framing is the way messages are delimited on a byte stream.
type framing int32

const (
	framingUnknown framing = iota

	// one JSON message per line, this is the default framing.
	framingLine

	// LSP base protocol: Content-Length header, empty line, content.
	framingHeader
)

func (f framing) String() string {
	switch f {
	case framingLine:
		return "line"
	case framingHeader:
		return "header"
	default:
		return "unknown"
	}
}

var errLineTooLong = errors.New("line too long")

// readFramedMessage reads a single message from r. Empty lines between messages are ignored.
// A message starting with a Content-Length header is read as a LSP base protocol message,
// any other line is considered to be a whole JSON message.
func readFramedMessage(r *bufio.Reader) ([]byte, framing, error) {
	return readFramedMessageWithLimit(r, MAX_MESSAGE_SIZE)
}

// readFramedMessageWithLimit is like readFramedMessage but messages & header lines larger than maxSize are
// skipped and a ParseError is returned.
func readFramedMessageWithLimit(r *bufio.Reader, maxSize int) ([]byte, framing, error) {
	for {
		line, err := readLine(r, maxSize)
		if errors.Is(err, errLineTooLong) {
			return nil, framingLine, tooLargeError(maxSize)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				//last message without a trailing newline
				if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
					return trimmed, framingLine, nil
				}
			}
			return nil, framingUnknown, err
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}

		if !hasContentLengthHeader(trimmed) {
			return trimmed, framingLine, nil
		}

		contentLen, err := strconv.Atoi(strings.TrimSpace(string(trimmed[len(CONTENT_LENGTH_HEADER):])))
		if err != nil || contentLen < 0 || contentLen > maxSize {
			e := ParseError
			e.Data = fmt.Sprintf("invalid content length: %q", trimmed)
			return nil, framingHeader, e
		}

		//skip the other headers
		for {
			header, err := readLine(r, maxSize)
			if errors.Is(err, errLineTooLong) {
				return nil, framingHeader, tooLargeError(maxSize)
			}
			if err != nil {
				return nil, framingHeader, err
			}
			if len(bytes.TrimSpace(header)) == 0 {
				break
			}
		}

		content := make([]byte, contentLen)
		if _, err := io.ReadFull(r, content); err != nil {
			return nil, framingHeader, err
		}
		return content, framingHeader, nil
	}
}

// readLine reads a line including its '\n'. If the line is larger than maxSize the line is consumed
// without being buffered and errLineTooLong is returned.
func readLine(r *bufio.Reader, maxSize int) ([]byte, error) {
	var line []byte
	tooLong := false

	for {
		chunk, err := r.ReadSlice('\n')

		if !tooLong {
			if len(line)+len(chunk) > maxSize {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong && (err == nil || errors.Is(err, io.EOF)) {
			return nil, errLineTooLong
		}
		return line, err
	}
}

func tooLargeError(maxSize int) error {
	e := ParseError
	e.Data = fmt.Sprintf("message larger than %d bytes", maxSize)
	return e
}

func hasContentLengthHeader(line []byte) bool {
	return len(line) >= len(CONTENT_LENGTH_HEADER) &&
		strings.EqualFold(string(line[:len(CONTENT_LENGTH_HEADER)]), CONTENT_LENGTH_HEADER)
}

func frameMessage(f framing, msg []byte) []byte {
	if f == framingHeader {
		header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(msg))
		framed := make([]byte, 0, len(header)+len(msg))
		framed = append(framed, header...)
		return append(framed, msg...)
	}

	framed := make([]byte, 0, len(msg)+1)
	framed = append(framed, msg...)
	return append(framed, '\n')
}
