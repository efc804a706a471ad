package ipc

import (
	"encoding/json"
	"net"
	"testing"
)

func TestConnSendRecvRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := NewConn(server)
	clientConn := NewConn(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		env, err := serverConn.Recv()
		if err != nil {
			t.Errorf("server recv failed: %v", err)
			return
		}
		if env.Type != "registry.list_assets" {
			t.Errorf("unexpected type: %s", env.Type)
		}
	}()

	if err := clientConn.SendTyped("req-1", "registry.list_assets", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	<-done
}

func TestConnRejectsTamperedHMAC(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := NewConn(server)
	clientConn := NewConn(client)
	clientConn.SetSessionKey([]byte("a-session-key-that-is-32-bytes!"))

	done := make(chan error, 1)
	go func() {
		_, err := serverConn.Recv()
		done <- err
	}()

	env := &Envelope{ID: "req-1", Type: "ping", Payload: json.RawMessage("{}")}
	if err := clientConn.Send(env); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	err := <-done
	if err == nil {
		t.Fatal("expected HMAC mismatch because server and client keys differ")
	}
}

func TestConnRejectsReplayedSequence(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := NewConn(server)
	clientConn := NewConn(client)

	go func() {
		clientConn.Send(&Envelope{ID: "1", Type: "ping"})
		clientConn.Send(&Envelope{ID: "1", Type: "ping"})
	}()

	first, err := serverConn.Recv()
	if err != nil {
		t.Fatalf("first recv failed: %v", err)
	}
	if first.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", first.Seq)
	}

	// clientConn.sendSeq keeps incrementing, so the second physical send
	// carries seq 2 — simulate a genuine replay by resetting the
	// server's view directly.
	serverConn.recvSeq.Store(5)
	second, err := serverConn.Recv()
	if err == nil {
		t.Fatalf("expected replay rejection, got envelope %+v", second)
	}
}
