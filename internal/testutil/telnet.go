// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cory-johannsen/marksman/internal/frontend/telnet"
)

// TelnetClient is a simple Telnet test client for integration testing. Output is
// returned with Telnet commands and ANSI escapes removed.
type TelnetClient struct {
	conn    net.Conn
	pending string
	partial string // raw bytes of an escape sequence split across reads
	t       *testing.T
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("telnet client connected to %s [%s]", addr, time.Since(start))
	return &TelnetClient{conn: conn, t: t}
}

// ReadUntil reads until the cleaned output contains substr or timeout occurs. It
// returns the output up to and including the match; anything after it is kept for
// the next read.
//
// Precondition: substr must be non-empty.
// Postcondition: Returns the accumulated output containing substr, or fails on timeout.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	buf := c.pending
	tmp := make([]byte, 1024)
	for {
		if i := strings.Index(buf, substr); i >= 0 {
			end := i + len(substr)
			c.pending = buf[end:]
			return buf[:end]
		}
		n, err := c.conn.Read(tmp)
		if n > 0 {
			raw := c.partial + string(telnet.FilterIAC(tmp[:n]))
			raw, c.partial = splitEscape(raw)
			buf += telnet.StripANSI(raw)
		}
		if err != nil {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, buf, err)
		}
	}
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Command sends text and returns the output up to the next occurrence of prompt.
func (c *TelnetClient) Command(text, prompt string, timeout time.Duration) string {
	c.t.Helper()
	c.Send(text)
	return c.ReadUntil(prompt, timeout)
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	c.conn.Close()
}

// splitEscape holds back a trailing escape sequence that has not been terminated yet.
func splitEscape(s string) (complete, partial string) {
	i := strings.LastIndexByte(s, 0x1b)
	if i < 0 {
		return s, ""
	}
	for _, r := range s[i+1:] {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return s, ""
		}
	}
	return s[:i], s[i:]
}
