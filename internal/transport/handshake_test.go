package transport

import (
	"fmt"
	"net"
	"testing"
)

func TestHandshakeAcceptedRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	type result struct {
		id   int32
		name string
		err  error
	}
	serverDone := make(chan result, 1)
	go func() {
		id, name, err := acceptHandshake(serverConn, 2, "bob", nil)
		serverDone <- result{id, name, err}
	}()

	remoteID, remoteName, err := dialHandshake(clientConn, 1, "alice")
	if err != nil {
		t.Fatalf("dialHandshake: %v", err)
	}
	if remoteID != 2 || remoteName != "bob" {
		t.Fatalf("got id=%d name=%q, want id=2 name=%q", remoteID, remoteName, "bob")
	}

	srv := <-serverDone
	if srv.err != nil {
		t.Fatalf("acceptHandshake: %v", srv.err)
	}
	if srv.id != 1 || srv.name != "alice" {
		t.Fatalf("server saw id=%d name=%q, want id=1 name=%q", srv.id, srv.name, "alice")
	}
}

func TestHandshakeRejectedByValidator(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverErr := make(chan error, 1)
	go func() {
		_, _, err := acceptHandshake(serverConn, 2, "bob", func(name string) error {
			return fmt.Errorf("name %q already taken", name)
		})
		serverErr <- err
	}()

	_, _, err := dialHandshake(clientConn, 1, "alice")
	if err == nil {
		t.Fatal("expected dialHandshake to see a rejection")
	}
	if serr := <-serverErr; serr == nil {
		t.Fatal("expected acceptHandshake to report the rejection too")
	}
}
