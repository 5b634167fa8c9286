// Package lsframe implements the header-framed wire format used on
// language-server channels: one or more "Name: value" header lines
// terminated by an empty line, where Content-Length gives the exact byte
// length of the body that follows. The framer is payload-agnostic.
package lsframe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// headerContentLength is matched case-insensitively per the protocol.
const headerContentLength = "content-length"

// ErrMalformed reports a header block without a parsable Content-Length.
// It is non-fatal: the reader resynchronizes on the next header block.
var ErrMalformed = errors.New("malformed frame header")

// MalformedError carries the offending header block for logging.
type MalformedError struct {
	Headers string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed frame header: %q", e.Headers)
}

func (e *MalformedError) Unwrap() error { return ErrMalformed }

// Reader decodes framed messages from a byte stream. It owns the stream's
// read position; a partially read frame is not recoverable by other readers.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for frame decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the body of the next message. End of stream, whether during
// header or body read, is reported as io.EOF: the session ended, it is not
// a protocol error. A *MalformedError leaves the reader positioned at the
// next header block so the caller can log and continue.
func (r *Reader) Next() ([]byte, error) {
	headers, err := r.readHeaderBlock()
	if err != nil {
		return nil, err
	}

	length, ok := contentLength(headers)
	if !ok {
		return nil, &MalformedError{Headers: headers}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.br, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return body, nil
}

// readHeaderBlock accumulates header lines until the blank line terminator.
func (r *Reader) readHeaderBlock() (string, error) {
	var headers strings.Builder
	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if line == "\r\n" || line == "\n" {
			return headers.String(), nil
		}
		headers.WriteString(line)
	}
}

// contentLength extracts the Content-Length value from a header block.
func contentLength(headers string) (int, bool) {
	for _, line := range strings.Split(headers, "\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), headerContentLength) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Writer encodes framed messages onto a byte stream. Writes are not
// internally synchronized; the owning pump serializes them.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for frame encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write frames body with its Content-Length header and writes it out. The
// header terminator is exactly "\r\n\r\n" for interoperability with standard
// language-server implementations.
func (w *Writer) Write(body []byte) error {
	if _, err := fmt.Fprintf(w.w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err := w.w.Write(body)
	return err
}

// Encode returns the framed form of body without writing it anywhere.
func Encode(body []byte) []byte {
	framed := make([]byte, 0, len(body)+32)
	framed = append(framed, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))...)
	framed = append(framed, body...)
	return framed
}
