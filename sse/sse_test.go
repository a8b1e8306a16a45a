package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "data: hello\n\n", Encode("hello"))
	assert.Equal(t, "data: a\ndata: b\n\n", Encode("a\nb"))
	assert.Equal(t, "data: \n\n", Encode(""))
	assert.Equal(t, "data: [DONE]\n\n", Encode(Done))
}

func TestEncodeError(t *testing.T) {
	assert.Equal(t, `{"error":"rate limited"}`, EncodeError("rate limited"))

	msg, ok := ParseError(EncodeError("boom"))
	require.True(t, ok)
	assert.Equal(t, "boom", msg)

	_, ok = ParseError("{")
	assert.False(t, ok)
	_, ok = ParseError("plain")
	assert.False(t, ok)
}

func TestReader_RoundTrip(t *testing.T) {
	chunks := []string{"func main() {", "\n\tfmt.Println(1)\n", "}", ""}
	var stream strings.Builder
	for _, c := range chunks {
		stream.WriteString(Encode(c))
	}
	stream.WriteString(Encode(Done))

	r := NewReader(strings.NewReader(stream.String()))
	for _, want := range chunks {
		got, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Done, got)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_IgnoresCommentsAndOtherFields(t *testing.T) {
	r := NewReader(strings.NewReader(": ping\nevent: x\ndata:no-space\n\n"))
	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "no-space", got)
}

func TestReader_TrailingEventWithoutBlankLine(t *testing.T) {
	r := NewReader(strings.NewReader("data: tail"))
	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "tail", got)
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		want    string
		wantErr error
	}{
		{"done", Encode("Hel") + Encode("lo") + Encode(Done), "Hello", nil},
		{"error", Encode("par") + Encode(EncodeError("upstream 500")), "par", ErrStream},
		{"truncated", Encode("par"), "par", io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []string
			got, err := NewReader(strings.NewReader(tt.stream)).Collect(func(c string) { seen = append(seen, c) })
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, strings.Join(seen, ""))
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCollect_ErrorMessage(t *testing.T) {
	_, err := NewReader(strings.NewReader(Encode(EncodeError("bad key")))).Collect(nil)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "bad key", se.Message)
}
