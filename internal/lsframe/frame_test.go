package lsframe

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	large := `{"jsonrpc":"2.0","method":"noise","params":{"data":"` + strings.Repeat("x", 70*1024) + `"}}`
	bodies := []string{
		"",
		"{}",
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		large,
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, body := range bodies {
		if err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, want := range bodies {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if string(got) != want {
			t.Fatalf("body %d mismatch: got %d bytes, want %d", i, len(got), len(want))
		}
		if want != "" && !json.Valid(got) {
			t.Fatalf("body %d is not valid JSON after round trip", i)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF at end of stream, got %v", err)
	}
}

func TestRoundTripMultiReadBoundary(t *testing.T) {
	body := strings.Repeat("a", 64*1024+17)
	r := NewReader(iotest1ByteReader{bytes.NewReader(Encode([]byte(body)))})
	got, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(got) != body {
		t.Fatalf("body mismatch across read boundaries")
	}
}

// iotest1ByteReader forces one-byte reads to exercise partial-read handling.
type iotest1ByteReader struct {
	r io.Reader
}

func (o iotest1ByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}

func TestMalformedHeaderResync(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("X-Nonsense: yes\r\n\r\n")
	buf.Write(Encode([]byte(`{"ok":true}`)))

	r := NewReader(&buf)

	_, err := r.Next()
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed sentinel, got %v", err)
	}
	if !strings.Contains(malformed.Headers, "X-Nonsense") {
		t.Fatalf("expected offending headers in error, got %q", malformed.Headers)
	}

	body, err := r.Next()
	if err != nil {
		t.Fatalf("expected resync on second frame: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body after resync: %q", body)
	}
}

func TestContentLengthCaseInsensitive(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("CONTENT-LENGTH: 2\r\n\r\nhi")
	r := NewReader(&buf)
	body, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(body) != "hi" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestExtraHeadersIgnored(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("Content-Type: application/vscode-jsonrpc; charset=utf-8\r\nContent-Length: 4\r\n\r\nbody")
	r := NewReader(&buf)
	body, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(body) != "body" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestTruncatedBodyIsEndOfSession(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("Content-Length: 100\r\n\r\nshort")
	r := NewReader(&buf)
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF for truncated body, got %v", err)
	}
}

func TestTruncatedHeaderIsEndOfSession(t *testing.T) {
	r := NewReader(strings.NewReader("Content-Length: 5\r\n"))
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF for truncated header block, got %v", err)
	}
}
