package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// StreamLogs connects to the sandbox's websocket log feed and delivers
// lines to handler until the context is canceled or the connection
// drops. It returns the first error that ended the stream; a context
// cancellation returns ctx.Err().
func (c *Client) StreamLogs(ctx context.Context, handler func(line string)) error {
	endpoint, err := wsEndpoint(c.baseURL)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("sandbox log stream: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("sandbox log stream: %w", err)
	}
	defer conn.Close()

	// Reader goroutines block in ReadMessage; closing the connection on
	// cancellation is the only way to unblock them.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("sandbox log stream: %w", err)
		}
		for _, line := range strings.Split(strings.TrimRight(string(message), "\n"), "\n") {
			handler(line)
		}
	}
}

// wsEndpoint derives the websocket log URL from the REST base URL.
func wsEndpoint(baseURL string) (string, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/logs/stream", nil
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/logs/stream", nil
	default:
		return "", fmt.Errorf("sandbox base url %q must be http or https", baseURL)
	}
}
