package transport

import (
	"encoding/binary"
	"errors"
	"io"
)

// writeLP writes b to w as a uint32 little-endian length prefix followed
// by the bytes themselves. This is the outer stream framing every
// consensus frame and handshake message travels in; it is independent of
// whatever length-prefixed strings appear inside the payload itself.
func writeLP(w io.Writer, b []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// maxFrameLen bounds a single length-prefixed read so that a corrupt or
// malicious peer cannot force an unbounded allocation.
const maxFrameLen = 16 << 20

var errFrameTooLarge = errors.New("transport: frame exceeds maximum size")

func readLP(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > maxFrameLen {
		return nil, errFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeString writes s to w as a length-prefixed UTF-8 string, matching
// the encoding the consensus frame uses for its string fields. Used by
// the handshake and player-info exchanges, which write field-by-field
// directly to the connection rather than building an in-memory buffer.
func writeString(w io.Writer, s string) error {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", err
	}
	length := binary.LittleEndian.Uint32(n[:])
	if length > maxFrameLen {
		return "", errFrameTooLarge
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
