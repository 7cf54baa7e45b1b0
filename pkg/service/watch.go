package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/protocol"
)

// StreamURL turns a camera node base URL into its detections stream URL.
func StreamURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://"):
		u = "ws://" + u
	}
	return u + protocol.DetectionsStreamPath
}

// WatchDetections streams capture reports from the camera node at baseURL
// and calls fn for each one until ctx is done or the connection drops.
// Malformed messages are skipped.
func WatchDetections(ctx context.Context, baseURL string, fn func(perception.Report)) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	ws, _, err := dialer.DialContext(ctx, StreamURL(baseURL), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to detections stream: %w", err)
	}
	defer ws.Close()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
	})
	defer stop()

	logger := log.Component("watch")
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read detections: %w", err)
		}

		var report perception.Report
		if err := json.Unmarshal(data, &report); err != nil {
			logger.Warn("skipping malformed report", "err", err)
			continue
		}
		fn(report)
	}
}
