package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"duochat/client/protocol"
)

// Message is one entry of the conversation view. Exactly one of ID and
// LocalID is set: ID once the store has persisted the message, LocalID
// while it is pending. Timestamp is the server-assigned RFC3339 string,
// empty while pending.
type Message struct {
	ID        string
	LocalID   string
	Sender    string
	Receiver  string
	Text      string
	Timestamp string
}

// Pending reports whether the message still awaits durable confirmation.
func (m Message) Pending() bool {
	return m.ID == ""
}

// Store is the remote message store boundary: durable append with a
// server-assigned timestamp, and a live subscription that delivers the
// entire current collection on every change.
type Store interface {
	// Append blocks until the store acknowledges the write or an explicit
	// timeout elapses.
	Append(receiver, text string) error

	// Subscribe opens the feed. onSnapshot receives the full result set on
	// initial load and after every insert; onError receives a terminal
	// transport failure. The returned release stops delivery and must be
	// called when the session ends.
	Subscribe(onSnapshot func([]Message), onError func(error)) (release func(), err error)
}

// RemoteStore adapts the wire client to the Store boundary.
type RemoteStore struct {
	client *protocol.Client
}

func NewRemoteStore(client *protocol.Client) *RemoteStore {
	return &RemoteStore{client: client}
}

func (r *RemoteStore) Append(receiver, text string) error {
	return r.client.AppendMessage(receiver, text)
}

func (r *RemoteStore) Subscribe(onSnapshot func([]Message), onError func(error)) (func(), error) {
	var released atomic.Bool

	r.client.OnPacket(protocol.TypeSnap, func(parts []string) {
		if released.Load() {
			return
		}
		content := ""
		if len(parts) >= 2 {
			content = parts[1]
		}
		onSnapshot(fromWire(protocol.ParseSnapshot(content)))
	})

	r.client.OnPacket(protocol.TypeBye, func(parts []string) {
		if released.Load() {
			return
		}
		reason := "connection closed"
		if len(parts) >= 2 && parts[1] != "" {
			reason = parts[1]
		}
		onError(fmt.Errorf("%s", reason))
	})

	if err := r.client.Subscribe(); err != nil {
		released.Store(true)
		return nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			released.Store(true)
			if r.client.IsConnected() {
				// fire and forget: release must not block on the ack
				// timeout, the connection is torn down right after
				r.client.Send(protocol.TypeUnsub)
			}
		})
	}
	return release, nil
}

func fromWire(wire []protocol.Message) []Message {
	messages := make([]Message, 0, len(wire))
	for _, m := range wire {
		messages = append(messages, Message{
			ID:        m.ID,
			Sender:    m.Sender,
			Receiver:  m.Receiver,
			Text:      m.Text,
			Timestamp: m.Timestamp,
		})
	}
	return messages
}
