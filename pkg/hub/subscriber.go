package hub

import (
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// ErrStopped is returned by Subscribe once the hub has stopped.
var ErrStopped = errors.New("hub stopped")

// Conn is the part of *websocket.Conn a subscriber uses.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Subscriber is one websocket connection receiving published messages.
type Subscriber struct {
	hub  *Hub
	conn Conn
	send chan Message
}

// Subscribe registers conn with h.
func Subscribe(h *Hub, conn Conn) (*Subscriber, error) {
	s := &Subscriber{
		hub:  h,
		conn: conn,
		send: make(chan Message, max(sendBuffer, h.replaySize)),
	}
	select {
	case h.join <- s:
		return s, nil
	case <-h.done:
		return nil, ErrStopped
	}
}

// Serve pumps messages to the connection and blocks until it closes.
func (s *Subscriber) Serve() {
	go s.writePump()
	s.readPump()
}

// readPump only detects disconnection; subscribers send nothing but pongs.
func (s *Subscriber) readPump() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(msg.Frame.wsType(), msg.Data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
