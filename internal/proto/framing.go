package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize caps inbound payloads; anything larger is treated as a
// protocol violation rather than an allocation request.
const MaxFrameSize = 1 << 20

// FrameHeaderSize is the length prefix width in bytes.
const FrameHeaderSize = 4

var (
	ErrFrameTooLarge = errors.New("proto: frame exceeds size limit")
	ErrEmptyFrame    = errors.New("proto: zero-length frame")
)

// WriteFrame writes one length-prefixed payload. The prefix is a 4-byte
// little-endian byte count that excludes the prefix itself.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var header [FrameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads exactly one framed payload, looping until the declared
// byte count is satisfied. io.EOF is returned unchanged when the peer
// closes between frames.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
