package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// fakeUpstream accepts one WebSocket connection, records the initial
// configuration frame, and echoes every later frame back prefixed with
// "echo:" (binary frames come back verbatim).
type fakeUpstream struct {
	srv *httptest.Server

	gotKey  chan string
	gotInit chan initFrame
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		gotKey:  make(chan string, 1),
		gotInit: make(chan initFrame, 1),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.gotKey <- r.URL.Query().Get("xi-api-key")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, first, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var init initFrame
		_ = json.Unmarshal(first, &init)
		f.gotInit <- init

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.TextMessage {
				data = append([]byte("echo:"), data...)
			}
			if err := conn.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

// startBridge serves the bridge behind a real HTTP upgrade so the test can
// dial it like a browser client would.
func startBridge(t *testing.T, b *Bridge) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = b.Run(context.Background(), conn, "sk_bridge_key", "agent_77")
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func recvString(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting on channel")
		return ""
	}
}

func TestBridge_SendsCredentialAndInitFrame(t *testing.T) {
	upstream := newFakeUpstream(t)
	b := &Bridge{UpstreamURL: upstream.wsURL(), QueueSize: 16, WriteTimeout: time.Second}
	client := startBridge(t, b)
	defer client.Close()

	if got := recvString(t, upstream.gotKey); got != "sk_bridge_key" {
		t.Fatalf("xi-api-key query = %q", got)
	}

	select {
	case init := <-upstream.gotInit:
		if init.ModelID != "agent_77" {
			t.Fatalf("init model_id = %q, want agent_77", init.ModelID)
		}
		if init.Text != "" || init.Debug {
			t.Fatalf("init frame = %+v, want empty text and debug=false", init)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("upstream never received init frame")
	}
}

func TestBridge_ForwardsFramesVerbatimInOrder(t *testing.T) {
	upstream := newFakeUpstream(t)
	b := &Bridge{UpstreamURL: upstream.wsURL(), QueueSize: 16, WriteTimeout: time.Second}
	client := startBridge(t, b)
	defer client.Close()

	// Drain the handshake signals before exchanging frames.
	recvString(t, upstream.gotKey)
	<-upstream.gotInit

	for _, msg := range []string{"first", "second", "third"} {
		if err := client.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
	}
	for _, want := range []string{"echo:first", "echo:second", "echo:third"} {
		_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
		messageType, data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("read echo: %v", err)
		}
		if messageType != websocket.TextMessage {
			t.Fatalf("message type = %d, want text", messageType)
		}
		if string(data) != want {
			t.Fatalf("frame = %q, want %q (order must be preserved)", data, want)
		}
	}
}

func TestBridge_PreservesBinaryFrameType(t *testing.T) {
	upstream := newFakeUpstream(t)
	b := &Bridge{UpstreamURL: upstream.wsURL(), QueueSize: 16, WriteTimeout: time.Second}
	client := startBridge(t, b)
	defer client.Close()

	recvString(t, upstream.gotKey)
	<-upstream.gotInit

	payload := []byte{0x00, 0x01, 0xFE, 0xFF}
	if err := client.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read binary echo: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", messageType)
	}
	if string(data) != string(payload) {
		t.Fatalf("binary payload altered: %v", data)
	}
}

func TestBridge_ClientCloseClosesUpstream(t *testing.T) {
	upstreamClosed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer close(upstreamClosed)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := &Bridge{UpstreamURL: "ws" + strings.TrimPrefix(srv.URL, "http"), QueueSize: 16, WriteTimeout: time.Second}
	client := startBridge(t, b)

	_ = client.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = client.Close()

	select {
	case <-upstreamClosed:
	case <-time.After(5 * time.Second):
		t.Fatalf("upstream connection not closed after client hangup")
	}
}

func TestBridge_UpstreamDialFailureClosesClient(t *testing.T) {
	b := &Bridge{UpstreamURL: "ws://127.0.0.1:1", QueueSize: 16, WriteTimeout: time.Second}
	client := startBridge(t, b)
	defer client.Close()

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := client.ReadMessage()
	if err == nil {
		t.Fatalf("expected close after upstream dial failure")
	}
	if !websocket.IsCloseError(err, websocket.CloseInternalServerErr) {
		t.Fatalf("close error = %v, want 1011", err)
	}
}

func TestBridge_OverflowClosesBothSidesWithTryAgainLater(t *testing.T) {
	payload := []byte(strings.Repeat("x", 64*1024))
	upstreamClose := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// Park a reader so the close frame is seen the moment it
		// arrives, then flood faster than the client drains.
		go func() {
			_, _, err := conn.ReadMessage()
			upstreamClose <- err
		}()
		for {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	b := &Bridge{
		UpstreamURL:  "ws" + strings.TrimPrefix(srv.URL, "http"),
		QueueSize:    1,
		WriteTimeout: 5 * time.Second,
	}
	client := startBridge(t, b)

	// Drain slowly: the client-bound queue backs up behind a full socket
	// and overflows long before the write deadline can fire.
	_ = client.SetReadDeadline(time.Now().Add(10 * time.Second))
	var clientErr error
	for {
		if _, _, err := client.ReadMessage(); err != nil {
			clientErr = err
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !websocket.IsCloseError(clientErr, websocket.CloseTryAgainLater) {
		t.Fatalf("client close err = %v, want close code 1013", clientErr)
	}

	select {
	case err := <-upstreamClose:
		if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
			t.Fatalf("upstream close err = %v, want close code 1013", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("upstream never observed the close")
	}
}
