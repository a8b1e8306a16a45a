// Package sse implements the small subset of Server-Sent Events framing used
// by the generation endpoints: every payload line is sent as a "data:" field
// and an event ends with a blank line.
package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Done is the payload that terminates a successful stream.
const Done = "[DONE]"

// ErrorPayload is the in-band failure payload.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Encode frames data as one event. Multi-line data becomes several data
// lines, which a reader joins back with "\n".
func Encode(data string) string {
	var sb strings.Builder
	for _, line := range strings.Split(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}

// EncodeError returns the JSON error payload for message.
func EncodeError(message string) string {
	b, err := json.Marshal(ErrorPayload{Error: message})
	if err != nil {
		return `{"error":"inference request failed"}`
	}
	return string(b)
}

// ParseError reports whether data is an error payload and returns its
// message.
func ParseError(data string) (string, bool) {
	if !strings.HasPrefix(data, "{") {
		return "", false
	}
	var p ErrorPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil || p.Error == "" {
		return "", false
	}
	return p.Error, true
}

// Reader decodes events from a stream.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewReader creates a reader over r. If r is an io.Closer, Close closes it.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	rd := &Reader{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Next returns the data of the next event. It returns io.EOF when the stream
// ends; a trailing event without a blank line is still returned.
func (r *Reader) Next() (string, error) {
	var lines []string
	seen := false
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if seen {
				return strings.Join(lines, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		seen = true
		lines = append(lines, strings.TrimPrefix(value, " "))
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	if seen {
		return strings.Join(lines, "\n"), nil
	}
	return "", io.EOF
}

// ErrStream is returned by Collect when the stream carried an error payload.
var ErrStream = errors.New("stream failed")

// Collect reads the whole stream and concatenates the text chunks. It stops at
// Done, returns an error wrapping ErrStream for an error payload, and
// io.ErrUnexpectedEOF when the stream ended without Done.
func (r *Reader) Collect(fn func(chunk string)) (string, error) {
	var sb strings.Builder
	for {
		data, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), io.ErrUnexpectedEOF
		}
		if err != nil {
			return sb.String(), err
		}
		if data == Done {
			return sb.String(), nil
		}
		if msg, ok := ParseError(data); ok {
			return sb.String(), &StreamError{Message: msg}
		}
		sb.WriteString(data)
		if fn != nil {
			fn(data)
		}
	}
}

// Close closes the underlying reader when it is closable.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// StreamError carries the message of an in-band error payload.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }

// Unwrap allows errors.Is(err, ErrStream).
func (e *StreamError) Unwrap() error { return ErrStream }
