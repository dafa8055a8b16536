package paxos

import (
	"encoding/binary"
	"errors"
	"io"
)

// Phase tags the four message shapes that flow between peers. Every
// Paxos role (proposer, acceptor, learner) a node plays reads and writes
// the same Frame type; the Phase field is what tells a handler which
// algorithm step to run.
type Phase int32

const (
	PhasePrepare Phase = iota
	PhasePromise
	PhaseAccept
	PhaseAccepted
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "Prepare"
	case PhasePromise:
		return "Promise"
	case PhaseAccept:
		return "Accept"
	case PhaseAccepted:
		return "Accepted"
	default:
		return "Unknown"
	}
}

// Frame is the single wire shape for all four Paxos message types:
// phase, slot, sender, proposal_id, an optional value (empty string
// denotes the "no value" ∅), and for Promise frames the optional
// last-accepted (id, value) pair an acceptor reports back to the
// proposer. Unused fields are simply left zero for phases that don't need
// them (e.g. Prepare carries no Value).
type Frame struct {
	Phase             Phase
	Slot              int32
	Sender            int32
	ProposalID        ID
	Value             string
	LastAcceptedID    ID
	LastAcceptedValue string
}

// Encode serializes f into the little-endian wire format:
//
//	phase   int32
//	slot    int32
//	sender  int32
//	propID  int64
//	value   length-prefixed UTF-8 (uint32 length + bytes)
//	lastID  int64
//	lastVal length-prefixed UTF-8
func (f Frame) Encode() []byte {
	buf := make([]byte, 0, 32+len(f.Value)+len(f.LastAcceptedValue))
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], uint32(f.Phase))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(f.Slot))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(f.Sender))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(f.ProposalID))
	buf = append(buf, tmp[:8]...)
	buf = appendString(buf, f.Value)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(f.LastAcceptedID))
	buf = append(buf, tmp[:8]...)
	buf = appendString(buf, f.LastAcceptedValue)
	return buf
}

func appendString(buf []byte, s string) []byte {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(s)))
	buf = append(buf, length[:]...)
	return append(buf, s...)
}

// ErrShortFrame is returned by DecodeFrame when b does not contain a complete
// frame.
var ErrShortFrame = errors.New("paxos: truncated frame")

// DecodeFrame parses a Frame out of b, the inverse of Frame.Encode.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	r := &reader{b: b}

	phase, err := r.u32()
	if err != nil {
		return f, err
	}
	slot, err := r.u32()
	if err != nil {
		return f, err
	}
	sender, err := r.u32()
	if err != nil {
		return f, err
	}
	propID, err := r.u64()
	if err != nil {
		return f, err
	}
	value, err := r.str()
	if err != nil {
		return f, err
	}
	lastID, err := r.u64()
	if err != nil {
		return f, err
	}
	lastVal, err := r.str()
	if err != nil {
		return f, err
	}

	f.Phase = Phase(phase)
	f.Slot = int32(slot)
	f.Sender = int32(sender)
	f.ProposalID = ID(propID)
	f.Value = value
	f.LastAcceptedID = ID(lastID)
	f.LastAcceptedValue = lastVal
	return f, nil
}

// reader is a small cursor over a byte slice; it exists only to keep
// DecodeFrame free of repeated bounds-checking boilerplate.
type reader struct {
	b   []byte
	off int
}

func (r *reader) u32() (uint32, error) {
	if len(r.b)-r.off < 4 {
		return 0, ErrShortFrame
	}
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if len(r.b)-r.off < 8 {
		return 0, ErrShortFrame
	}
	v := binary.LittleEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if len(r.b)-r.off < int(n) {
		return "", ErrShortFrame
	}
	s := string(r.b[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

// WriteTo/ReadFrom-style helpers for stream transports (TCP), which need
// a length prefix around the whole frame since frames are variable size.

// WriteFrame writes a length-prefixed frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	body := f.Encode()
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(body)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads a length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return Frame{}, err
	}
	n := binary.LittleEndian.Uint32(length[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}
	return DecodeFrame(body)
}
