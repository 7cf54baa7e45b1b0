// Package hub fans capture reports out to websocket subscribers using a
// single goroutine that owns the subscriber set.
package hub

import "github.com/gofiber/websocket/v2"

// Frame is the websocket frame a message is written as.
type Frame int

const (
	TextFrame   Frame = iota // encoded reports
	BinaryFrame              // raw JPEG snapshots
)

func (f Frame) wsType() int {
	if f == BinaryFrame {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Message is one broadcast payload.
type Message struct {
	Frame Frame
	Data  []byte
}

// Text wraps pre-encoded JSON.
func Text(data []byte) Message {
	return Message{Frame: TextFrame, Data: data}
}

// Binary wraps raw bytes.
func Binary(data []byte) Message {
	return Message{Frame: BinaryFrame, Data: data}
}
