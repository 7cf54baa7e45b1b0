package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn blocks reads until closed and records writes.
type fakeConn struct {
	mu     sync.Mutex
	writes []Message
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch messageType {
	case websocket.TextMessage:
		c.writes = append(c.writes, Text(data))
	case websocket.BinaryMessage:
		c.writes = append(c.writes, Binary(data))
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) received() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.writes...)
}

func startHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := New("test", opts...)
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	return h
}

func subscribe(t *testing.T, h *Hub) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	s, err := Subscribe(h, conn)
	require.NoError(t, err)
	go s.Serve()
	return conn
}

func TestHub_PublishJSON(t *testing.T) {
	h := startHub(t)
	conn := subscribe(t, h)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.PublishJSON(map[string]int{"count": 2}))
	require.Eventually(t, func() bool { return len(conn.received()) == 1 }, time.Second, 5*time.Millisecond)

	msg := conn.received()[0]
	assert.Equal(t, TextFrame, msg.Frame)
	assert.JSONEq(t, `{"count":2}`, string(msg.Data))

	h.Publish(Binary([]byte{1, 2}))
	require.Eventually(t, func() bool { return len(conn.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, BinaryFrame, conn.received()[1].Frame)
}

func TestHub_PublishJSONError(t *testing.T) {
	h := New("test")
	assert.Error(t, h.PublishJSON(func() {}))
}

func TestHub_Replay(t *testing.T) {
	h := startHub(t, WithReplay(2))

	first := subscribe(t, h)
	for _, v := range []string{`"a"`, `"b"`, `"c"`} {
		h.Publish(Text([]byte(v)))
	}
	// Once the first subscriber has everything, the replay buffer is final.
	require.Eventually(t, func() bool { return len(first.received()) == 3 }, time.Second, 5*time.Millisecond)

	late := subscribe(t, h)
	require.Eventually(t, func() bool { return len(late.received()) == 2 }, time.Second, 5*time.Millisecond)
	got := late.received()
	assert.Equal(t, `"b"`, string(got[0].Data))
	assert.Equal(t, `"c"`, string(got[1].Data))
}

func TestHub_LeaveOnDisconnect(t *testing.T) {
	h := startHub(t)
	conn := subscribe(t, h)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test")

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)

	conn := newFakeConn()
	s, err := Subscribe(h, conn)
	require.NoError(t, err)
	served := make(chan struct{})
	go func() {
		s.Serve()
		close(served)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.False(t, h.IsRunning())

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("subscriber did not disconnect")
	}

	_, err = Subscribe(h, newFakeConn())
	assert.ErrorIs(t, err, ErrStopped)
}
