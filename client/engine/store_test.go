package engine

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/client/protocol"
)

func TestMessagePending(t *testing.T) {
	pending := Message{LocalID: "local", Text: "hi"}
	assert.True(t, pending.Pending())

	confirmed := Message{ID: "1", Text: "hi"}
	assert.False(t, confirmed.Pending())
}

// storeServer is a minimal scripted feed endpoint. push delivers a snapshot
// line to the connected client.
type storeServer struct {
	addr string
	conn chan net.Conn
}

func newStoreServer(t *testing.T) *storeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv := &storeServer{addr: ln.Addr().String(), conn: make(chan net.Conn, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		srv.conn <- conn
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSuffix(line, "\n")
			switch {
			case strings.HasPrefix(line, "sub"):
				conn.Write([]byte("ok|sub\n"))
			case strings.HasPrefix(line, "unsub"):
				conn.Write([]byte("ok|unsub\n"))
			case strings.HasPrefix(line, "msg|"):
				conn.Write([]byte("ok|msg\n"))
			}
		}
	}()
	return srv
}

func (s *storeServer) push(t *testing.T, line string) {
	t.Helper()
	select {
	case conn := <-s.conn:
		s.conn <- conn
		_, err := conn.Write([]byte(line + "\n"))
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected")
	}
}

func TestRemoteStoreSubscribeAndRelease(t *testing.T) {
	srv := newStoreServer(t)

	client := protocol.NewClient()
	require.NoError(t, client.Connect(srv.addr))
	defer client.Disconnect()

	store := NewRemoteStore(client)
	snapshots := make(chan []Message, 4)
	release, err := store.Subscribe(
		func(messages []Message) { snapshots <- messages },
		func(error) {},
	)
	require.NoError(t, err)

	srv.push(t, "snap|msg|1|alice|bob|hi|2025-01-01T10:00:00Z")

	select {
	case messages := <-snapshots:
		require.Len(t, messages, 1)
		assert.Equal(t, "1", messages[0].ID)
		assert.Equal(t, "alice", messages[0].Sender)
		assert.Equal(t, "hi", messages[0].Text)
		assert.False(t, messages[0].Pending())
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot never delivered")
	}

	release()

	// snapshots after release must not reach the callback
	srv.push(t, "snap|msg|2|alice|bob|late|2025-01-01T10:00:01Z")
	select {
	case messages := <-snapshots:
		t.Errorf("released subscription still delivered %v", messages)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRemoteStoreReleaseDoesNotBlock(t *testing.T) {
	// acks sub but never unsub: release must not wait on one
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "sub") {
				conn.Write([]byte("ok|sub\n"))
			}
		}
	}()

	client := protocol.NewClient()
	require.NoError(t, client.Connect(ln.Addr().String()))
	defer client.Disconnect()

	store := NewRemoteStore(client)
	release, err := store.Subscribe(func([]Message) {}, func(error) {})
	require.NoError(t, err)

	start := time.Now()
	release()
	assert.Less(t, time.Since(start), time.Second)
}

func TestRemoteStoreAppend(t *testing.T) {
	srv := newStoreServer(t)

	client := protocol.NewClient()
	require.NoError(t, client.Connect(srv.addr))
	defer client.Disconnect()

	store := NewRemoteStore(client)
	require.NoError(t, store.Append("bob", "hi"))
}

func TestRemoteStoreFeedError(t *testing.T) {
	srv := newStoreServer(t)

	client := protocol.NewClient()
	require.NoError(t, client.Connect(srv.addr))
	defer client.Disconnect()

	store := NewRemoteStore(client)
	errs := make(chan error, 1)
	_, err := store.Subscribe(func([]Message) {}, func(err error) { errs <- err })
	require.NoError(t, err)

	srv.push(t, "bye|maintenance")

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "maintenance")
	case <-time.After(2 * time.Second):
		t.Fatal("feed error never delivered")
	}
}
