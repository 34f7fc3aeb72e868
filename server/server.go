package server

import (
	"bufio"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"duochat/db"
	"duochat/protocol"
)

type Server struct {
	db       *db.DB
	config   *ServerConfig
	sessions map[string]*Session
	mu       sync.RWMutex
	// snapMu orders snapshot generation with delivery: a snapshot read from
	// the log is written out before the next one is read, so no subscriber
	// observes a smaller collection after a larger one.
	snapMu sync.Mutex
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Session struct {
	Login      string
	Conn       net.Conn
	Subscribed bool
	LastPing   time.Time
	mu         sync.Mutex
}

func New(database *db.DB, config *ServerConfig) *Server {
	return &Server{
		db:       database,
		config:   config,
		sessions: make(map[string]*Session),
	}
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Printf("duochat server started on port %d", s.config.Port)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("Error accepting connection: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()
	log.Printf("New client connected from %s", remoteAddr)

	session := &Session{
		Conn:     conn,
		LastPing: time.Now(),
	}

	reader := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					// idle read deadline, keep waiting
					session.mu.Lock()
					session.LastPing = time.Now()
					session.mu.Unlock()
					continue
				}
				if strings.Contains(err.Error(), "use of closed network connection") {
					break
				}
				log.Printf("Error reading from %s: %v", remoteAddr, err)
			}
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Do not log credentials
		if !strings.HasPrefix(line, "auth|") && !strings.HasPrefix(line, "reg|") {
			log.Printf("Received from %s: %q", remoteAddr, line)
		}

		pkt, err := protocol.ParsePacket(line + "\n")
		if err != nil {
			log.Printf("Parse error from %s: %v, line: %q", remoteAddr, err, line)
			s.sendError(conn, "", "Invalid packet format")
			continue
		}

		s.handlePacket(session, pkt, conn)

		// Session already removed in handleBye
		if pkt.Type == "bye" {
			return
		}
	}

	if session.Login != "" {
		s.removeSession(session.Login)
		log.Printf("Client %s disconnected from %s", session.Login, remoteAddr)
	} else {
		log.Printf("Client disconnected from %s", remoteAddr)
	}
}

func (s *Server) handlePacket(session *Session, pkt *protocol.Packet, conn net.Conn) {
	session.mu.Lock()
	session.LastPing = time.Now()
	session.mu.Unlock()

	switch pkt.Type {
	case "ping":
		s.handlePing(conn)
	case "auth":
		s.handleAuth(session, pkt, conn)
	case "reg":
		s.handleRegister(session, pkt, conn)
	case "msg":
		s.handleMessage(session, pkt, conn)
	case "sub":
		s.handleSubscribe(session, conn)
	case "unsub":
		s.handleUnsubscribe(session, conn)
	case "bye":
		s.handleBye(session, conn)
	default:
		s.sendError(conn, "", "Unknown packet type")
	}
}

// sendPacket writes a packet with individually escaped fields:
// pktType|field1|field2|...\n
func (s *Server) sendPacket(conn net.Conn, pktType string, fields ...string) {
	var parts []string
	parts = append(parts, protocol.Escape(pktType))

	for _, field := range fields {
		parts = append(parts, protocol.Escape(field))
	}

	packet := strings.Join(parts, "|") + "\n"
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if _, err := conn.Write([]byte(packet)); err != nil {
		log.Printf("Error writing to connection: %v", err)
	}
}

// sendPacketRaw writes a packet whose content carries structural pipes and
// commas of its own (snapshots): pktType|rawContent\n
func (s *Server) sendPacketRaw(conn net.Conn, pktType, rawContent string) {
	packet := protocol.Escape(pktType) + "|" + rawContent + "\n"
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if _, err := conn.Write([]byte(packet)); err != nil {
		log.Printf("Error writing to connection: %v", err)
	}
}

func (s *Server) sendOK(conn net.Conn, operation string) {
	if operation != "" {
		s.sendPacket(conn, "ok", operation)
	} else {
		s.sendPacket(conn, "ok")
	}
}

func (s *Server) sendError(conn net.Conn, operation, description string) {
	if operation != "" {
		s.sendPacket(conn, "fail", operation, description)
	} else {
		s.sendPacket(conn, "fail", description)
	}
}

func (s *Server) sendBye(conn net.Conn, reason string) {
	if reason != "" {
		s.sendPacket(conn, "bye", reason)
	} else {
		s.sendPacket(conn, "bye")
	}
}

func (s *Server) addSession(login string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[login] = session
}

func (s *Server) removeSession(login string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, login)
}

// subscribedConns snapshots the connections of all subscribed sessions.
func (s *Server) subscribedConns() []net.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conns []net.Conn
	for _, session := range s.sessions {
		session.mu.Lock()
		if session.Subscribed {
			conns = append(conns, session.Conn)
		}
		session.mu.Unlock()
	}
	return conns
}

// GetStats returns server statistics as a formatted string
func (s *Server) GetStats() string {
	s.mu.RLock()
	activeConnections := len(s.sessions)
	subscribers := 0
	var users []string
	for login, session := range s.sessions {
		users = append(users, login)
		session.mu.Lock()
		if session.Subscribed {
			subscribers++
		}
		session.mu.Unlock()
	}
	s.mu.RUnlock()

	messageCount, err := s.db.MessageCount()
	if err != nil {
		log.Printf("Stats error: %v", err)
	}

	return "connections=" + strconv.Itoa(activeConnections) +
		",subscribers=" + strconv.Itoa(subscribers) +
		",messages=" + strconv.Itoa(messageCount) +
		",users=" + strings.Join(users, ";")
}

// Shutdown sends bye to every connected session and closes the connections.
func (s *Server) Shutdown(reason string) {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		s.sendBye(session.Conn, reason)
		session.Conn.Close()
	}
}
