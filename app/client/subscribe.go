package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const DefaultDebounce = 250 * time.Millisecond

type changeMessage struct {
	Type string `json:"type"`
}

// Subscribe listens to the service's change feed and calls onChange once per
// burst of events, after the feed has been quiet for debounce. An empty URL
// means realtime is not configured and returns immediately. It blocks until
// ctx is done or the connection drops.
func Subscribe(ctx context.Context, wsURL string, debounce time.Duration, onChange func()) error {
	if wsURL == "" {
		slog.Debug("Realtime URL not configured, change feed disabled")
		return nil
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to change feed: %w", err)
	}
	defer conn.Close()

	events := make(chan struct{}, 1)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var msg changeMessage
			if json.Unmarshal(data, &msg) != nil || msg.Type != "changed" {
				continue
			}
			select {
			case events <- struct{}{}:
			default:
			}
		}
	}()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case err := <-readErr:
			return fmt.Errorf("change feed closed: %w", err)
		case <-events:
			timer.Reset(debounce)
		case <-timer.C:
			onChange()
		}
	}
}
