package models

import "time"

type User struct {
	ID       int64
	Login    string
	Password string // hashed
}

// Message is one record in the append-only message log. ID and Timestamp
// are assigned by the server on durable append.
type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Text      string
	Timestamp time.Time
}
