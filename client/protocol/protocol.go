package protocol

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Packet types
const (
	TypePing  = "ping"
	TypePong  = "pong"
	TypeBye   = "bye"
	TypeAuth  = "auth"
	TypeReg   = "reg"
	TypeOk    = "ok"
	TypeFail  = "fail"
	TypeMsg   = "msg"
	TypeSub   = "sub"
	TypeUnsub = "unsub"
	TypeSnap  = "snap"
)

// DefaultAckTimeout bounds how long a request waits for the server's ok/fail.
const DefaultAckTimeout = 10 * time.Second

// Message is one record of the remote message collection as it appears on
// the wire. Timestamp is the server-assigned RFC3339 string.
type Message struct {
	ID        string
	Sender    string
	Receiver  string
	Text      string
	Timestamp string
}

// Client is a duochat wire client. Responses are dispatched to handlers
// registered with OnPacket; request acks (ok/fail) are matched to callers
// in FIFO order per operation, since the protocol carries no request ids.
type Client struct {
	conn       net.Conn
	reader     *bufio.Reader
	mu         sync.Mutex
	sendMu     sync.Mutex
	handlers   map[string][]func([]string)
	acks       map[string][]chan error
	ackMu      sync.Mutex
	ackTimeout time.Duration
	pingTicker *time.Ticker
	done       chan struct{}
	connected  bool
	lastPong   time.Time
	pongMu     sync.RWMutex
}

// NewClient creates a new wire client
func NewClient() *Client {
	return &Client{
		handlers:   make(map[string][]func([]string)),
		acks:       make(map[string][]chan error),
		ackTimeout: DefaultAckTimeout,
		done:       make(chan struct{}),
	}
}

// SetAckTimeout overrides the request ack timeout. Must be called before
// requests are issued.
func (c *Client) SetAckTimeout(d time.Duration) {
	c.ackTimeout = d
}

// Connect connects to the duochat server
func (c *Client) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return err
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected = true
	c.lastPong = time.Now()

	// Track last response time
	c.OnPacket(TypePong, func(parts []string) {
		c.pongMu.Lock()
		c.lastPong = time.Now()
		c.pongMu.Unlock()
	})

	c.pingTicker = time.NewTicker(30 * time.Second)
	go c.pingLoop()
	go c.readLoop()

	return nil
}

// Disconnect gracefully disconnects from the server
func (c *Client) Disconnect() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	close(c.done)
	if c.pingTicker != nil {
		c.pingTicker.Stop()
	}
	c.failPendingAcks(fmt.Errorf("disconnected"))
	c.Send(TypeBye)
	time.Sleep(100 * time.Millisecond)
	return c.conn.Close()
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	return c.connected
}

// LastPongTime returns time since last pong response
func (c *Client) LastPongTime() time.Duration {
	c.pongMu.RLock()
	defer c.pongMu.RUnlock()
	return time.Since(c.lastPong)
}

// pingLoop sends periodic pings
func (c *Client) pingLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.pingTicker.C:
			if c.connected {
				c.Send(TypePing)
			}
		}
	}
}

// readLoop reads packets from the server
func (c *Client) readLoop() {
	for c.connected {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if c.connected {
				c.connected = false
				c.failPendingAcks(fmt.Errorf("connection lost"))
				c.notifyHandlers(TypeBye, []string{TypeBye, "connection_lost"})
			}
			return
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		// Snapshots carry raw content with structural pipes and commas, so
		// only the packet type is split off.
		var parts []string
		if strings.HasPrefix(line, TypeSnap+"|") {
			parts = splitPacketN(line, 2)
		} else {
			parts = splitPacket(line)
		}

		if len(parts) == 0 {
			continue
		}

		packetType := parts[0]

		// Acks are resolved synchronously so callers observe them in wire
		// order, before any registered handler runs.
		switch packetType {
		case TypeOk:
			if len(parts) >= 2 {
				c.resolveAck(parts[1], nil)
			}
		case TypeFail:
			if len(parts) >= 2 {
				desc := "operation failed"
				if len(parts) >= 3 {
					desc = parts[2]
				}
				c.resolveAck(parts[1], fmt.Errorf("%s", desc))
			}
		}

		// Snapshots replace one another, so they are delivered in wire
		// order on the read loop; everything else is dispatched async.
		if packetType == TypeSnap {
			c.notifyHandlersSync(packetType, parts)
		} else {
			c.notifyHandlers(packetType, parts)
		}
	}
}

// notifyHandlers notifies registered handlers
func (c *Client) notifyHandlers(packetType string, parts []string) {
	c.mu.Lock()
	handlers := c.handlers[packetType]
	c.mu.Unlock()

	for _, h := range handlers {
		go h(parts)
	}
}

func (c *Client) notifyHandlersSync(packetType string, parts []string) {
	c.mu.Lock()
	handlers := c.handlers[packetType]
	c.mu.Unlock()

	for _, h := range handlers {
		h(parts)
	}
}

// OnPacket registers a handler for a packet type
func (c *Client) OnPacket(packetType string, handler func([]string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[packetType] = append(c.handlers[packetType], handler)
}

// enqueueAck registers a waiter for the next ok/fail of an operation.
func (c *Client) enqueueAck(op string) chan error {
	ch := make(chan error, 1)
	c.ackMu.Lock()
	c.acks[op] = append(c.acks[op], ch)
	c.ackMu.Unlock()
	return ch
}

// resolveAck completes the oldest waiter for an operation.
func (c *Client) resolveAck(op string, result error) {
	c.ackMu.Lock()
	queue := c.acks[op]
	if len(queue) == 0 {
		c.ackMu.Unlock()
		return
	}
	ch := queue[0]
	c.acks[op] = queue[1:]
	c.ackMu.Unlock()
	ch <- result
}

// failPendingAcks completes every outstanding waiter with an error.
func (c *Client) failPendingAcks(err error) {
	c.ackMu.Lock()
	for op, queue := range c.acks {
		for _, ch := range queue {
			select {
			case ch <- err:
			default:
			}
		}
		delete(c.acks, op)
	}
	c.ackMu.Unlock()
}

// request sends a packet and waits for its ok/fail ack.
func (c *Client) request(parts ...string) error {
	ch := c.enqueueAck(parts[0])
	if err := c.Send(parts...); err != nil {
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-time.After(c.ackTimeout):
		return fmt.Errorf("%s timed out", parts[0])
	case <-c.done:
		return fmt.Errorf("disconnected")
	}
}

// Send sends a packet to the server
func (c *Client) Send(parts ...string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.connected && parts[0] != TypeBye {
		return fmt.Errorf("not connected")
	}

	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = Escape(p)
	}
	line := strings.Join(escaped, "|") + "\n"
	_, err := c.conn.Write([]byte(line))
	return err
}

// Auth authenticates and waits for the server's verdict
func (c *Client) Auth(login, password string) error {
	return c.request(TypeAuth, login, password)
}

// Register creates an account and waits for the server's verdict
func (c *Client) Register(login, password string) error {
	return c.request(TypeReg, login, password)
}

// AppendMessage requests a durable append and waits for the ack. The
// snapshot reflecting the append arrives independently on the feed.
func (c *Client) AppendMessage(receiver, text string) error {
	return c.request(TypeMsg, receiver, text)
}

// Subscribe opens the live snapshot feed for this session
func (c *Client) Subscribe() error {
	return c.request(TypeSub)
}

// Unsubscribe closes the live snapshot feed
func (c *Client) Unsubscribe() error {
	return c.request(TypeUnsub)
}

// Escape escapes special characters in a string
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}

// Unescape unescapes special characters in a string
func Unescape(s string) string {
	var result strings.Builder
	escaped := false
	for _, ch := range s {
		if escaped {
			switch ch {
			case '|':
				result.WriteRune('|')
			case ',':
				result.WriteRune(',')
			case '\\':
				result.WriteRune('\\')
			case 'n':
				result.WriteRune('\n')
			case 'r':
				result.WriteRune('\r')
			default:
				result.WriteRune('\\')
				result.WriteRune(ch)
			}
			escaped = false
		} else if ch == '\\' {
			escaped = true
		} else {
			result.WriteRune(ch)
		}
	}
	if escaped {
		result.WriteRune('\\')
	}
	return result.String()
}

// splitPacket splits a packet by unescaped pipe
func splitPacket(line string) []string {
	var parts []string
	var current strings.Builder
	escaped := false

	for _, ch := range line {
		if escaped {
			current.WriteRune('\\')
			current.WriteRune(ch)
			escaped = false
		} else if ch == '\\' {
			escaped = true
		} else if ch == '|' {
			parts = append(parts, Unescape(current.String()))
			current.Reset()
		} else {
			current.WriteRune(ch)
		}
	}
	if escaped {
		current.WriteRune('\\')
	}
	parts = append(parts, Unescape(current.String()))
	return parts
}

// splitPacketN splits a packet by unescaped pipe, but only up to n parts.
// The last part keeps the remaining raw content.
func splitPacketN(line string, n int) []string {
	if n <= 0 {
		return []string{line}
	}

	var parts []string
	var current strings.Builder
	escaped := false
	count := 0
	bytePos := 0

	for _, ch := range line {
		charLen := len(string(ch))

		if count >= n-1 {
			// Rest stays raw, it may carry structural pipes
			parts = append(parts, line[bytePos:])
			return parts
		}

		if escaped {
			current.WriteRune('\\')
			current.WriteRune(ch)
			escaped = false
		} else if ch == '\\' {
			escaped = true
		} else if ch == '|' {
			parts = append(parts, Unescape(current.String()))
			current.Reset()
			count++
		} else {
			current.WriteRune(ch)
		}
		bytePos += charLen
	}
	if escaped {
		current.WriteRune('\\')
	}
	parts = append(parts, Unescape(current.String()))
	return parts
}

// SplitList splits a comma-separated list, leaving items escaped
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	var current strings.Builder
	escaped := false

	for _, ch := range s {
		if escaped {
			current.WriteRune('\\')
			current.WriteRune(ch)
			escaped = false
		} else if ch == '\\' {
			escaped = true
		} else if ch == ',' {
			parts = append(parts, current.String())
			current.Reset()
		} else {
			current.WriteRune(ch)
		}
	}
	if escaped {
		current.WriteRune('\\')
	}
	parts = append(parts, current.String())
	return parts
}

// ParseSnapshot parses snap packet content: comma-joined items, each item
// msg|id|sender|receiver|text|timestamp with per-field escaping.
func ParseSnapshot(content string) []Message {
	if content == "" {
		return nil
	}
	items := SplitList(content)
	var messages []Message
	for _, item := range items {
		parts := splitPacket(item)
		if len(parts) >= 6 && parts[0] == TypeMsg {
			messages = append(messages, Message{
				ID:        parts[1],
				Sender:    parts[2],
				Receiver:  parts[3],
				Text:      parts[4],
				Timestamp: parts[5],
			})
		}
	}
	return messages
}
