package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ErrBacklogExceeded is returned when one side of the bridge outpaces the
// other beyond the bounded per-direction queue. The bridge closes both
// sides instead of buffering without limit.
var ErrBacklogExceeded = errors.New("relay backlog exceeded")

// Bridge forwards WebSocket frames verbatim between a client connection
// and the upstream realtime voice endpoint. It holds exactly the two
// paired connections for its own lifetime and nothing longer-lived.
type Bridge struct {
	UpstreamURL  string
	QueueSize    int
	WriteTimeout time.Duration
	Dialer       *websocket.Dialer
	Logger       *slog.Logger
}

// frame preserves the message type along with the payload so text/binary
// boundaries survive the relay.
type frame struct {
	messageType int
	data        []byte
}

type initFrame struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
	Debug   bool   `json:"debug"`
}

// Run dials upstream, sends the initial configuration frame, and pumps
// frames in both directions until either side closes or errors. It blocks
// for the life of the call and always leaves both connections closed.
func (b *Bridge) Run(ctx context.Context, client *websocket.Conn, apiKey, agentID string) error {
	dialer := b.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	upstreamURL := strings.TrimSpace(b.UpstreamURL) + "?xi-api-key=" + url.QueryEscape(apiKey)
	upstream, resp, err := dialer.DialContext(ctx, upstreamURL, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial upstream (status %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("dial upstream: %w", err)
		}
		b.closeWith(client, websocket.CloseInternalServerErr, "upstream connection failed")
		return err
	}

	if err := upstream.WriteJSON(initFrame{ModelID: agentID}); err != nil {
		b.closeWith(client, websocket.CloseInternalServerErr, "upstream handshake failed")
		_ = upstream.Close()
		return fmt.Errorf("send upstream config frame: %w", err)
	}

	queueSize := b.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	errCh := make(chan error, 4)
	toUpstream := make(chan frame, queueSize)
	toClient := make(chan frame, queueSize)

	go b.readInto(client, toUpstream, errCh)
	go b.readInto(upstream, toClient, errCh)
	go b.writeFrom(upstream, toUpstream, errCh)
	go b.writeFrom(client, toClient, errCh)

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		runErr = ctx.Err()
	}

	switch {
	case runErr == nil || isExpectedClose(runErr):
		b.closeWith(client, websocket.CloseNormalClosure, "")
		b.closeWith(upstream, websocket.CloseNormalClosure, "")
		runErr = nil
	case errors.Is(runErr, ErrBacklogExceeded):
		b.closeWith(client, websocket.CloseTryAgainLater, "relay backlog exceeded")
		b.closeWith(upstream, websocket.CloseTryAgainLater, "relay backlog exceeded")
	default:
		b.closeWith(client, websocket.CloseInternalServerErr, "relay connection error")
		b.closeWith(upstream, websocket.CloseInternalServerErr, "relay connection error")
	}

	_ = client.Close()
	_ = upstream.Close()
	return runErr
}

// readInto reads frames from conn onto the bounded queue. A full queue is
// treated as a terminal condition rather than a reason to buffer. Closing
// the queue on exit lets the paired writer drain and finish.
func (b *Bridge) readInto(conn *websocket.Conn, queue chan<- frame, errCh chan<- error) {
	defer close(queue)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case queue <- frame{messageType: messageType, data: data}:
		default:
			errCh <- ErrBacklogExceeded
			return
		}
	}
}

func (b *Bridge) writeFrom(conn *websocket.Conn, queue <-chan frame, errCh chan<- error) {
	for f := range queue {
		if b.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(b.WriteTimeout))
		}
		if err := conn.WriteMessage(f.messageType, f.data); err != nil {
			errCh <- err
			return
		}
	}
}

func (b *Bridge) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
