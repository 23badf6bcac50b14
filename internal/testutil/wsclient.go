// Package testutil provides test client utilities for integration testing.
package testutil

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a simple websocket test client speaking the event protocol:
// JSON frames of the form {"event": name, "data": payload}.
type WSClient struct {
	sock *websocket.Conn
	t    *testing.T
}

// wireFrame mirrors the gateway envelope without importing it; testutil
// stays below the packages it tests.
type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewWSClient dials the given HTTP test server URL on the given path and
// returns a connected client.
//
// Precondition: httpURL must be an http:// URL with a listening server that
// upgrades path to a websocket.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, httpURL, path string) *WSClient {
	t.Helper()
	start := time.Now()

	url := "ws" + strings.TrimPrefix(httpURL, "http") + path
	sock, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		sock.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{sock: sock, t: t}
}

// Send marshals the payload and writes one event frame to the server.
//
// Postcondition: The frame is written, or the test fails.
func (c *WSClient) Send(event string, payload any) {
	c.t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		c.t.Fatalf("marshalling %s payload: %v", event, err)
	}
	frame, err := json.Marshal(wireFrame{Event: event, Data: data})
	if err != nil {
		c.t.Fatalf("marshalling %s frame: %v", event, err)
	}
	_ = c.sock.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.t.Fatalf("sending %s: %v", event, err)
	}
}

// SendRaw writes raw bytes as a text frame, for malformed-input tests.
func (c *WSClient) SendRaw(data []byte) {
	c.t.Helper()
	_ = c.sock.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("sending raw frame: %v", err)
	}
}

// Recv reads the next event frame and unmarshals its payload into out, which
// may be nil to discard it. It returns the event name.
//
// Postcondition: Returns the event name with out populated, or fails on
// timeout or a malformed frame.
func (c *WSClient) Recv(timeout time.Duration, out any) string {
	c.t.Helper()
	_ = c.sock.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.sock.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.t.Fatalf("unmarshalling frame %q: %v", data, err)
	}
	if out != nil {
		if err := json.Unmarshal(frame.Data, out); err != nil {
			c.t.Fatalf("unmarshalling %s payload %q: %v", frame.Event, frame.Data, err)
		}
	}
	return frame.Event
}

// RecvUntil reads frames until one with the given event name arrives,
// unmarshalling its payload into out. Intervening frames are discarded.
//
// Precondition: event must be non-empty.
// Postcondition: Returns with out populated, or fails after max frames.
func (c *WSClient) RecvUntil(event string, out any) {
	c.t.Helper()
	const max = 32
	for i := 0; i < max; i++ {
		var raw json.RawMessage
		got := c.Recv(2*time.Second, &raw)
		if got == event {
			if out != nil {
				if err := json.Unmarshal(raw, out); err != nil {
					c.t.Fatalf("unmarshalling %s payload %q: %v", event, raw, err)
				}
			}
			return
		}
	}
	c.t.Fatalf("no %s frame within %d frames", event, max)
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.sock.Close()
}
