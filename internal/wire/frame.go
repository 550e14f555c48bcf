package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Framing names accepted by ParseFraming.
const (
	FramingRaw    = "raw"
	FramingLength = "length"
)

// ErrFrameTooLarge is returned when a length header announces more bytes than
// the read buffer can hold.
var ErrFrameTooLarge = errors.New("frame exceeds buffer")

// Framer reads and writes whole messages on a byte stream.
type Framer interface {
	// ReadMessage reads one message into buf and returns the filled prefix.
	// io.EOF means the peer closed the stream between messages.
	ReadMessage(r io.Reader, buf []byte) ([]byte, error)
	// WriteMessage writes msg in a single Write call.
	WriteMessage(w io.Writer, msg []byte) error
	String() string
}

// ParseFraming returns the Framer registered under name.
func ParseFraming(name string) (Framer, error) {
	switch name {
	case FramingRaw:
		return Raw{}, nil
	case FramingLength, "":
		return LengthPrefixed{}, nil
	default:
		return nil, fmt.Errorf("unknown framing %q (want %q or %q)", name, FramingRaw, FramingLength)
	}
}

// Raw treats the bytes returned by one Read as one message. It relies on the
// peer writing each document with a single write and on the document fitting
// the buffer; neither is guaranteed by TCP.
type Raw struct{}

func (Raw) String() string { return FramingRaw }

func (Raw) ReadMessage(r io.Reader, buf []byte) ([]byte, error) {
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (Raw) WriteMessage(w io.Writer, msg []byte) error {
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// LengthPrefixed delimits messages with a 4-byte big-endian length header.
// Wire format: [length:4 BE][payload].
type LengthPrefixed struct{}

const headerLen = 4

func (LengthPrefixed) String() string { return FramingLength }

func (LengthPrefixed) ReadMessage(r io.Reader, buf []byte) ([]byte, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if uint64(length) > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: length=%d buffer=%d", ErrFrameTooLarge, length, len(buf))
	}
	if _, err := io.ReadFull(r, buf[:length]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return buf[:length], nil
}

func (LengthPrefixed) WriteMessage(w io.Writer, msg []byte) error {
	out := make([]byte, headerLen+len(msg))
	binary.BigEndian.PutUint32(out[:headerLen], uint32(len(msg)))
	copy(out[headerLen:], msg)
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
