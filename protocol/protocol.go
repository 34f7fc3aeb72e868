package protocol

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"duochat/models"
)

var (
	ErrInvalidPacket = errors.New("invalid packet format")
)

// Timestamp is the wire format for server-assigned message timestamps.
const Timestamp = "2006-01-02T15:04:05Z"

type Packet struct {
	Type        string
	Destination string
	Content     string
	Fields      []string // fields parsed out of Content
}

func ParsePacket(line string) (*Packet, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	parts := splitUnescaped(line, '|')
	if len(parts) < 1 {
		return nil, ErrInvalidPacket
	}

	pkt := &Packet{
		Type: unescape(parts[0]),
	}

	if len(parts) == 2 {
		// TYPE|CONTENT
		pkt.Content = unescape(parts[1])
		pkt.Fields = splitUnescaped(pkt.Content, '|')
	} else if len(parts) >= 3 {
		// TYPE|DESTINATION|CONTENT
		pkt.Destination = unescape(parts[1])
		pkt.Content = unescape(parts[2])
		pkt.Fields = splitUnescaped(pkt.Content, '|')
	}

	return pkt, nil
}

func FormatPacket(pktType string, destination string, content string) string {
	var parts []string
	parts = append(parts, Escape(pktType))

	if destination != "" {
		parts = append(parts, Escape(destination))
	}

	if content != "" {
		parts = append(parts, Escape(content))
	}

	return strings.Join(parts, "|") + "\n"
}

// FormatSnapshot renders the entire message collection as the content of a
// snap packet: comma-joined items, each item a pipe-joined escaped record
// msg|id|sender|receiver|text|timestamp.
func FormatSnapshot(messages []models.Message) string {
	items := make([]string, 0, len(messages))
	for _, m := range messages {
		fields := []string{
			Escape("msg"),
			Escape(strconv.FormatInt(m.ID, 10)),
			Escape(m.Sender),
			Escape(m.Receiver),
			Escape(m.Text),
			Escape(m.Timestamp.UTC().Format(Timestamp)),
		}
		items = append(items, strings.Join(fields, "|"))
	}
	return strings.Join(items, ",")
}

// splitUnescaped splits a string on a delimiter, skipping escaped runes
func splitUnescaped(s string, delimiter rune) []string {
	var parts []string
	var current strings.Builder
	escape := false

	for _, r := range s {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}

		if r == '\\' {
			escape = true
			current.WriteRune(r)
			continue
		}

		if r == delimiter {
			parts = append(parts, current.String())
			current.Reset()
			continue
		}

		current.WriteRune(r)
	}

	parts = append(parts, current.String())
	return parts
}

// unescape decodes escaped runes
func unescape(s string) string {
	var result strings.Builder
	escape := false

	for i, r := range s {
		if escape {
			switch r {
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
				// unknown escape, keep as-is
				result.WriteRune('\\')
				result.WriteRune(r)
			}
			escape = false
			continue
		}

		if r == '\\' {
			if i < len(s)-1 {
				escape = true
				continue
			}
		}

		result.WriteRune(r)
	}

	if escape {
		result.WriteRune('\\')
	}

	return result.String()
}

// Escape encodes the structural characters of the wire format
func Escape(s string) string {
	var result strings.Builder

	for _, r := range s {
		switch r {
		case '|':
			result.WriteString("\\|")
		case ',':
			result.WriteString("\\,")
		case '\\':
			result.WriteString("\\\\")
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// ParseTimestamp parses a wire timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(Timestamp, s)
}
