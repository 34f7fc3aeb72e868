package protocol

import (
	"strings"
	"testing"
	"time"

	"duochat/models"
)

func TestParsePacket(t *testing.T) {
	pkt, err := ParsePacket("ping\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pkt.Type != "ping" || pkt.Destination != "" || pkt.Content != "" {
		t.Errorf("unexpected packet: %+v", pkt)
	}

	pkt, err = ParsePacket("msg|bob|hello there\r\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pkt.Type != "msg" || pkt.Destination != "bob" || pkt.Content != "hello there" {
		t.Errorf("unexpected packet: %+v", pkt)
	}
}

func TestParsePacketEscaped(t *testing.T) {
	pkt, err := ParsePacket("msg|bob|pipe \\| and comma \\,\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pkt.Content != "pipe | and comma ," {
		t.Errorf("escapes not decoded: %q", pkt.Content)
	}
}

func TestFormatPacket(t *testing.T) {
	line := FormatPacket("fail", "msg", "receiver required")
	if line != "fail|msg|receiver required\n" {
		t.Errorf("unexpected line: %q", line)
	}

	line = FormatPacket("ok", "sub", "")
	if line != "ok|sub\n" {
		t.Errorf("unexpected line: %q", line)
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"plain",
		"with|pipe",
		"with,comma",
		"back\\slash",
		"line\nbreak\r",
	}
	for _, c := range cases {
		pkt, err := ParsePacket(FormatPacket("msg", "bob", c))
		if err != nil {
			t.Fatalf("parse of %q: %v", c, err)
		}
		if pkt.Content != c {
			t.Errorf("round trip of %q got %q", c, pkt.Content)
		}
	}
}

func TestFormatSnapshot(t *testing.T) {
	ts1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	ts2 := time.Date(2025, 1, 1, 10, 0, 1, 0, time.UTC)
	messages := []models.Message{
		{ID: 1, Sender: "alice", Receiver: "bob", Text: "hi", Timestamp: ts1},
		{ID: 2, Sender: "bob", Receiver: "alice", Text: "see you | tomorrow, ok?", Timestamp: ts2},
	}

	content := FormatSnapshot(messages)
	want := "msg|1|alice|bob|hi|2025-01-01T10:00:00Z" +
		",msg|2|bob|alice|see you \\| tomorrow\\, ok?|2025-01-01T10:00:01Z"
	if content != want {
		t.Errorf("snapshot mismatch:\n got %q\nwant %q", content, want)
	}

	if got := FormatSnapshot(nil); got != "" {
		t.Errorf("empty collection should render empty content, got %q", got)
	}
}

func TestFormatSnapshotNoStrayStructure(t *testing.T) {
	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	content := FormatSnapshot([]models.Message{
		{ID: 7, Sender: "a|b", Receiver: "c,d", Text: "x", Timestamp: ts},
	})
	// every item must keep exactly five unescaped pipes
	unescaped := 0
	escape := false
	for _, r := range content {
		if escape {
			escape = false
			continue
		}
		if r == '\\' {
			escape = true
			continue
		}
		if r == '|' {
			unescaped++
		}
	}
	if unescaped != 5 {
		t.Errorf("expected 5 structural pipes, got %d in %q", unescaped, content)
	}
	if strings.Contains(content, "a|b") {
		t.Errorf("sender pipe left unescaped: %q", content)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2025-01-01T10:00:00Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !ts.Equal(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected time: %v", ts)
	}

	if _, err := ParseTimestamp("not a time"); err == nil {
		t.Error("expected error for invalid timestamp")
	}
}
