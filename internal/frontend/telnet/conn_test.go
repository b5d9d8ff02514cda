package telnet

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// pipeConn returns a server-side Conn and the client end of an in-memory pipe.
func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server, 2*time.Second, 2*time.Second), client
}

func feed(client net.Conn, data []byte) {
	go func() {
		_, _ = client.Write(data)
	}()
}

func TestReadLine_Terminators(t *testing.T) {
	conn, client := pipeConn(t)
	feed(client, []byte("set ammo 3\r\nroll\nodds\rshow\r\n"))

	for _, want := range []string{"set ammo 3", "roll", "odds", "show"} {
		line, err := conn.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}

func TestReadLine_StripsNegotiationAndControls(t *testing.T) {
	conn, client := pipeConn(t)
	input := []byte{IAC, DO, OptSuppressGoAhead, 's', 'e', 't', 0x07, ' ', 'b', IAC, SB, 31, 0, 80, IAC, SE, 'a', 's', 'e', 0x7f, '\r', '\n'}
	feed(client, input)

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "set base", line)
}

func TestReadLine_TruncatesLongLines(t *testing.T) {
	conn, client := pipeConn(t)
	feed(client, []byte(strings.Repeat("x", MaxLineLength+100)+"\r\nnext\r\n"))

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Len(t, line, MaxLineLength)

	line, err = conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "next", line)
}

func TestReadLine_EOF(t *testing.T) {
	conn, client := pipeConn(t)
	go func() {
		_, _ = client.Write([]byte("partial"))
		client.Close()
	}()
	line, err := conn.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "partial", line)
}

func TestWriteLines(t *testing.T) {
	conn, client := pipeConn(t)
	go func() {
		_ = conn.WriteLines("one", "two")
		_ = conn.WritePrompt("> ")
	}()

	buf := make([]byte, 64)
	var got strings.Builder
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !strings.HasSuffix(got.String(), "> ") {
		n, err := client.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}
	assert.Equal(t, "one\r\ntwo\r\n> ", got.String())
	assert.NoError(t, conn.WriteLines())
}

func TestFilterIAC_NoIAC(t *testing.T) {
	input := []byte("hello world")
	assert.Equal(t, input, FilterIAC(input))
}

func TestFilterIAC_OptionCommands(t *testing.T) {
	assert.Equal(t, []byte("hi"), FilterIAC([]byte{IAC, WILL, OptEcho, 'h', 'i'}))
	assert.Equal(t, []byte("ok"), FilterIAC([]byte{IAC, WONT, OptSuppressGoAhead, 'o', 'k'}))
	assert.Equal(t, []byte("ab"), FilterIAC([]byte{'a', IAC, DO, OptLinemode, 'b'}))
	assert.Empty(t, FilterIAC([]byte{IAC, DONT, OptEcho}))
}

func TestFilterIAC_SubNegotiation(t *testing.T) {
	input := []byte{IAC, SB, 24, 0, 'x', 't', 'e', 'r', 'm', IAC, SE, 'z'}
	assert.Equal(t, []byte("z"), FilterIAC(input))

	unterminated := []byte{'a', IAC, SB, 24, 'x'}
	assert.Equal(t, []byte("a"), FilterIAC(unterminated))
}

func TestFilterIAC_EscapedIACAndNOP(t *testing.T) {
	assert.Equal(t, []byte{'a', IAC, 'b'}, FilterIAC([]byte{'a', IAC, IAC, 'b'}))
	assert.Equal(t, []byte("xy"), FilterIAC([]byte{'x', IAC, NOP, 'y'}))
}

// Property: FilterIAC on input without any IAC bytes returns the input unchanged.
func TestPropertyFilterIAC_NoIACBytesPassThrough(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.SliceOfN(rapid.ByteRange(0, 254), 0, 200).Draw(t, "input")
		assert.Equal(t, input, FilterIAC(input))
	})
}

// Property: text interleaved with well-formed commands filters back to the text.
func TestPropertyFilterIAC_RemovesCommands(t *testing.T) {
	commands := [][]byte{
		{IAC, WILL, OptEcho},
		{IAC, DO, OptSuppressGoAhead},
		{IAC, WONT, OptLinemode},
		{IAC, NOP},
		{IAC, GA},
		{IAC, SB, 31, 0, 80, 0, 24, IAC, SE},
	}
	rapid.Check(t, func(t *rapid.T) {
		chunks := rapid.SliceOfN(rapid.SliceOfN(rapid.ByteRange(0, 254), 0, 10), 1, 10).Draw(t, "chunks")
		var input, want []byte
		for _, chunk := range chunks {
			input = append(input, rapid.SampledFrom(commands).Draw(t, "command")...)
			input = append(input, chunk...)
			want = append(want, chunk...)
		}
		assert.Equal(t, want, FilterIAC(input))
	})
}

// Property: FilterIAC output length is always <= input length.
func TestPropertyFilterIAC_OutputNeverLongerThanInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.SliceOfN(rapid.Byte(), 0, 200).Draw(t, "input")
		assert.LessOrEqual(t, len(FilterIAC(input)), len(input))
	})
}
