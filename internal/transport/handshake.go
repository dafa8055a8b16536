package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// handshakeKey is the literal both sides must agree on before anything
// else is trusted on a freshly dialed connection.
const handshakeKey = "WEREWOLF_KEY"

// dialHandshake runs the initiator side: send our key, id, and name; read
// back either an accept (remote id + name) or a rejection reason.
func dialHandshake(conn net.Conn, selfID int32, selfName string) (remoteID int32, remoteName string, err error) {
	if err := writeString(conn, handshakeKey); err != nil {
		return 0, "", err
	}
	if err := writeInt32(conn, selfID); err != nil {
		return 0, "", err
	}
	if err := writeString(conn, selfName); err != nil {
		return 0, "", err
	}

	var ok [1]byte
	if _, err := io.ReadFull(conn, ok[:]); err != nil {
		return 0, "", err
	}
	if ok[0] == 0 {
		reason, err := readString(conn)
		if err != nil {
			return 0, "", err
		}
		return 0, "", fmt.Errorf("transport: handshake rejected: %s", reason)
	}
	remoteID, err = readInt32(conn)
	if err != nil {
		return 0, "", err
	}
	remoteName, err = readString(conn)
	if err != nil {
		return 0, "", err
	}
	return remoteID, remoteName, nil
}

// acceptHandshake runs the responder side. validate, if non-nil, may
// reject the proposed name (duplicate, equal to this node's own name, or
// the game is not accepting new players); a nil validate always accepts.
func acceptHandshake(conn net.Conn, selfID int32, selfName string, validate func(name string) error) (remoteID int32, remoteName string, err error) {
	key, err := readString(conn)
	if err != nil {
		return 0, "", err
	}
	if key != handshakeKey {
		writeReject(conn, "bad handshake key")
		return 0, "", fmt.Errorf("transport: bad handshake key %q", key)
	}
	remoteID, err = readInt32(conn)
	if err != nil {
		return 0, "", err
	}
	remoteName, err = readString(conn)
	if err != nil {
		return 0, "", err
	}
	if validate != nil {
		if verr := validate(remoteName); verr != nil {
			writeReject(conn, verr.Error())
			return 0, "", fmt.Errorf("transport: rejected name %q: %w", remoteName, verr)
		}
	}

	var ok [1]byte
	ok[0] = 1
	if _, err := conn.Write(ok[:]); err != nil {
		return 0, "", err
	}
	if err := writeInt32(conn, selfID); err != nil {
		return 0, "", err
	}
	if err := writeString(conn, selfName); err != nil {
		return 0, "", err
	}
	return remoteID, remoteName, nil
}

func writeReject(conn net.Conn, reason string) {
	var zero [1]byte
	conn.Write(zero[:])
	writeString(conn, reason)
}

func writeInt32(w io.Writer, v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	_, err := w.Write(b[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}
