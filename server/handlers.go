package server

import (
	"log"
	"net"
	"time"

	"duochat/protocol"
)

func (s *Server) handlePing(conn net.Conn) {
	s.sendPacket(conn, "pong")
}

func (s *Server) handleAuth(session *Session, pkt *protocol.Packet, conn net.Conn) {
	var login, password string

	// Format: auth|login|password (DESTINATION=login, CONTENT=password)
	if pkt.Destination != "" {
		login = pkt.Destination
		password = pkt.Content
	} else {
		if len(pkt.Fields) < 2 {
			s.sendError(conn, "auth", "Invalid credentials")
			return
		}
		login = pkt.Fields[0]
		password = pkt.Fields[1]
	}

	if login == "" || password == "" {
		s.sendError(conn, "auth", "Invalid credentials")
		return
	}

	if session.Login != "" {
		s.sendOK(conn, "auth")
		return
	}

	valid, err := s.db.AuthenticateUser(login, password)
	if err != nil {
		log.Printf("Auth error: %v", err)
		s.sendError(conn, "auth", "Internal error")
		return
	}

	if !valid {
		s.sendError(conn, "auth", "Invalid credentials")
		return
	}

	session.Login = login
	s.addSession(login, session)
	s.sendOK(conn, "auth")
}

func (s *Server) handleRegister(session *Session, pkt *protocol.Packet, conn net.Conn) {
	var login, password string

	// Format: reg|login|password (DESTINATION=login, CONTENT=password)
	if pkt.Destination != "" {
		login = pkt.Destination
		password = pkt.Content
	} else {
		if len(pkt.Fields) < 2 {
			s.sendError(conn, "reg", "Invalid data")
			return
		}
		login = pkt.Fields[0]
		password = pkt.Fields[1]
	}

	if login == "" || password == "" {
		s.sendError(conn, "reg", "Invalid data")
		return
	}

	exists, err := s.db.UserExists(login)
	if err != nil {
		log.Printf("Register error: %v", err)
		s.sendError(conn, "reg", "Internal error")
		return
	}

	if exists {
		s.sendError(conn, "reg", "User already exists")
		return
	}

	err = s.db.CreateUser(login, password)
	if err != nil {
		log.Printf("Register error: %v", err)
		s.sendError(conn, "reg", "Internal error")
		return
	}

	s.sendOK(conn, "reg")
}

// handleMessage appends a message to the log and pushes a fresh snapshot of
// the whole collection to every subscriber. The ok ack and the snapshot are
// independent: nothing correlates a particular append with a particular
// snapshot on the wire.
func (s *Server) handleMessage(session *Session, pkt *protocol.Packet, conn net.Conn) {
	if session.Login == "" {
		s.sendError(conn, "msg", "Not authenticated")
		return
	}

	receiver := pkt.Destination
	text := pkt.Content

	if receiver == "" {
		s.sendError(conn, "msg", "Receiver required")
		return
	}

	if text == "" {
		s.sendError(conn, "msg", "Message text required")
		return
	}

	timestamp := time.Now().UTC()
	if _, err := s.db.AppendMessage(session.Login, receiver, text, timestamp); err != nil {
		log.Printf("Message error: %v", err)
		s.sendError(conn, "msg", "Internal error")
		return
	}

	s.sendOK(conn, "msg")
	s.broadcastSnapshot()
}

// handleSubscribe opens the live feed for this session. The first snapshot
// follows the ok immediately so a subscriber never starts from an empty
// view it has to guess about.
func (s *Server) handleSubscribe(session *Session, conn net.Conn) {
	if session.Login == "" {
		s.sendError(conn, "sub", "Not authenticated")
		return
	}

	session.mu.Lock()
	session.Subscribed = true
	session.mu.Unlock()

	s.sendOK(conn, "sub")
	s.pushSnapshot(conn)
}

func (s *Server) handleUnsubscribe(session *Session, conn net.Conn) {
	if session.Login == "" {
		s.sendError(conn, "unsub", "Not authenticated")
		return
	}

	session.mu.Lock()
	session.Subscribed = false
	session.mu.Unlock()

	s.sendOK(conn, "unsub")
}

func (s *Server) handleBye(session *Session, conn net.Conn) {
	if session.Login != "" {
		s.removeSession(session.Login)
		log.Printf("Client %s sent bye", session.Login)
	}
	s.sendBye(conn, "")
	conn.Close()
}

// pushSnapshot writes the current full message collection to one connection.
func (s *Server) pushSnapshot(conn net.Conn) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	messages, err := s.db.AllMessages()
	if err != nil {
		log.Printf("Snapshot error: %v", err)
		s.sendError(conn, "sub", "Internal error")
		return
	}

	s.sendPacketRaw(conn, "snap", protocol.FormatSnapshot(messages))
}

// broadcastSnapshot delivers the current full collection to every
// subscribed session. Every subscriber gets every message: filtering to the
// two conversation parties happens on the client. The log read and the
// write loop stay under snapMu so concurrent appends cannot deliver an
// older snapshot after a newer one.
func (s *Server) broadcastSnapshot() {
	conns := s.subscribedConns()
	if len(conns) == 0 {
		return
	}

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	messages, err := s.db.AllMessages()
	if err != nil {
		log.Printf("Snapshot error: %v", err)
		return
	}

	content := protocol.FormatSnapshot(messages)
	for _, conn := range conns {
		s.sendPacketRaw(conn, "snap", content)
	}
}
