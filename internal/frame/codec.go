// Package frame encodes chat text into fixed-size, zero-padded wire frames
// and decodes such frames back into text.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSize is the frame length used by the server and client unless configured otherwise.
const DefaultSize = 32

// ErrPayloadTooLarge is returned by Encode when the text does not fit into a frame.
var ErrPayloadTooLarge = errors.New("frame: payload too large")

// Codec converts text to frames of a fixed size and back.
// The zero value is not usable, use NewCodec or Default.
type Codec struct {
	size int
}

// Default is the codec for DefaultSize frames.
var Default = Codec{size: DefaultSize}

// NewCodec returns a codec producing frames of exactly size bytes.
func NewCodec(size int) (Codec, error) {
	if size <= 0 {
		return Codec{}, fmt.Errorf("frame: invalid frame size %d", size)
	}
	return Codec{size: size}, nil
}

// Size returns the frame length in bytes.
func (c Codec) Size() int {
	return c.size
}

// NewFrame allocates an empty frame buffer.
func (c Codec) NewFrame() []byte {
	return make([]byte, c.size)
}

// Encode writes text into a new frame and zero-pads the remainder.
// Text longer than the frame is rejected rather than truncated, so a
// multi-byte sequence is never cut at the boundary.
func (c Codec) Encode(text string) ([]byte, error) {
	if len(text) > c.size {
		return nil, fmt.Errorf("%w: %d bytes exceeds frame size %d", ErrPayloadTooLarge, len(text), c.size)
	}
	f := make([]byte, c.size)
	copy(f, text)
	return f, nil
}

// Decode returns the text stored in f: the bytes before the first zero byte,
// with invalid UTF-8 replaced by U+FFFD and trailing whitespace trimmed.
// Every Unicode space is trimmed, not only ' ', so "hi\t\n" decodes to "hi".
func (c Codec) Decode(f []byte) string {
	p := payload(f)
	text := string(p)
	if !utf8.Valid(p) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	return strings.TrimRightFunc(text, unicode.IsSpace)
}

// Lossy reports whether decoding f replaces invalid UTF-8 sequences.
func (c Codec) Lossy(f []byte) bool {
	return !utf8.Valid(payload(f))
}

func payload(f []byte) []byte {
	if i := bytes.IndexByte(f, 0); i >= 0 {
		return f[:i]
	}
	return f
}

// Encode encodes text with the Default codec.
func Encode(text string) ([]byte, error) {
	return Default.Encode(text)
}

// Decode decodes f with the Default codec.
func Decode(f []byte) string {
	return Default.Decode(f)
}
