package redis

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmartiro/redox/redis/wire"
)

// startFakeServer listens on an ephemeral loopback port and hands the
// first accepted connection back on the returned channel, so a test can
// play the server side of the wire protocol by hand.
func startFakeServer(t *testing.T) (addr string, accepted <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ch := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			ch <- c
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String(), ch
}

// serveReplyingOK answers every request frame it receives with a status
// reply of +OK, until the connection closes.
func serveReplyingOK(conn net.Conn) {
	sc := wire.NewConn(conn)
	go func() {
		for {
			if _, err := sc.Receive(); err != nil {
				return
			}
			if _, err := conn.Write([]byte("+OK\r\n")); err != nil {
				return
			}
		}
	}()
}

func TestEngineConnectSendsCommandAndDecodesReply(t *testing.T) {
	addr, accepted := startFakeServer(t)
	eng := NewEngine(addr, WithDialTimeout(time.Second))
	require.True(t, eng.Connect(context.Background()))
	require.Equal(t, Connected, eng.State())
	defer eng.Disconnect()

	conn := <-accepted
	defer conn.Close()

	done := make(chan struct{})
	var gotStatus ReplyStatus
	var gotReply interface{}

	_, err := eng.Command([][]byte{[]byte("GET"), []byte("foo")}, ShapeString, func(c *Command) {
		gotStatus = c.Status()
		gotReply = c.Reply()
		close(done)
	})
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n", string(buf[:n]))

	_, err = conn.Write([]byte("$3\r\nbar\r\n"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	assert.Equal(t, Ok, gotStatus)
	assert.Equal(t, []byte("bar"), gotReply)
}

func TestEngineCommandBeforeConnectFails(t *testing.T) {
	eng := NewEngine("127.0.0.1:0")
	_, err := eng.Command([][]byte{[]byte("PING")}, ShapeString, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestEngineConnectErrorOnUnreachableAddress(t *testing.T) {
	eng := NewEngine("127.0.0.1:1", WithDialTimeout(300*time.Millisecond))
	ok := eng.Connect(context.Background())
	assert.False(t, ok)
	assert.Equal(t, ConnectError, eng.State())
}

func TestEngineDisconnectSetsDisconnectedState(t *testing.T) {
	addr, accepted := startFakeServer(t)
	eng := NewEngine(addr, WithDialTimeout(time.Second))
	require.True(t, eng.Connect(context.Background()))

	conn := <-accepted
	defer conn.Close()

	eng.Disconnect()
	assert.Equal(t, Disconnected, eng.State())
}

func TestEngineCommandSyncBlocksUntilReply(t *testing.T) {
	addr, accepted := startFakeServer(t)
	eng := NewEngine(addr, WithDialTimeout(time.Second))
	require.True(t, eng.Connect(context.Background()))
	defer eng.Disconnect()

	conn := <-accepted
	defer conn.Close()
	serveReplyingOK(conn)

	cmd, err := eng.CommandSync(context.Background(), [][]byte{[]byte("PING")}, ShapeString)
	require.NoError(t, err)
	assert.Equal(t, Ok, cmd.Status())
	assert.Equal(t, []byte("OK"), cmd.Reply())
	eng.Free(cmd)
}

func TestEngineCommandSyncTimesOutViaContext(t *testing.T) {
	addr, accepted := startFakeServer(t)
	eng := NewEngine(addr, WithDialTimeout(time.Second))
	require.True(t, eng.Connect(context.Background()))
	defer eng.Disconnect()

	conn := <-accepted
	defer conn.Close() // server never replies

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cmd, err := eng.CommandSync(ctx, [][]byte{[]byte("PING")}, ShapeString)
	require.NoError(t, err)
	assert.Equal(t, NoReply, cmd.Status())
	assert.ErrorIs(t, cmd.Err(), context.DeadlineExceeded)
}

func TestEngineCommandLoopFiresRepeatedlyUntilCanceled(t *testing.T) {
	addr, accepted := startFakeServer(t)
	eng := NewEngine(addr, WithDialTimeout(time.Second))
	require.True(t, eng.Connect(context.Background()))
	defer eng.Disconnect()

	conn := <-accepted
	defer conn.Close()
	serveReplyingOK(conn)

	var mu sync.Mutex
	count := 0
	cmd, err := eng.CommandLoop([][]byte{[]byte("PING")}, ShapeString, func(*Command) {
		mu.Lock()
		count++
		mu.Unlock()
	}, 20*time.Millisecond, 0)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	cmd.Cancel()
	eng.Free(cmd)

	mu.Lock()
	got := count
	mu.Unlock()
	assert.GreaterOrEqual(t, got, 3)
}
