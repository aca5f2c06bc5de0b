package obslink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const handshakeTimeout = 10 * time.Second

// client speaks the obs-websocket v5 protocol over one connection. It
// is single-use: after a read failure the owner dials a fresh one.
type client struct {
	log *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	reqID     atomic.Uint64
	pendingMu sync.Mutex
	pending   map[string]chan responseData

	onEvent func(eventType string, payload json.RawMessage)
	onClose func()
}

func newClient(log *zap.Logger, onEvent func(string, json.RawMessage), onClose func()) *client {
	return &client{
		log:     log,
		pending: make(map[string]chan responseData),
		onEvent: onEvent,
		onClose: onClose,
	}
}

// connect dials the tool, performs the Hello/Identify handshake and
// starts the read loop.
func (c *client) connect(ctx context.Context, url, password string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var hello envelope
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		conn.Close()
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloPayload helloData
	if err := json.Unmarshal(hello.D, &helloPayload); err != nil {
		conn.Close()
		return fmt.Errorf("decode hello: %w", err)
	}

	identify := identifyData{RPCVersion: 1, EventSubscriptions: eventSubscriptions}
	if helloPayload.Authentication != nil {
		identify.Authentication = authResponse(password, helloPayload.Authentication.Salt, helloPayload.Authentication.Challenge)
	}
	identifyPayload, _ := json.Marshal(identify)
	if err := conn.WriteJSON(envelope{Op: opIdentify, D: identifyPayload}); err != nil {
		conn.Close()
		return fmt.Errorf("write identify: %w", err)
	}

	var identified envelope
	if err := conn.ReadJSON(&identified); err != nil {
		conn.Close()
		return fmt.Errorf("read identified: %w", err)
	}
	if identified.Op != opIdentified {
		conn.Close()
		return fmt.Errorf("identify rejected, got op %d", identified.Op)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.readLoop(conn)
	return nil
}

func (c *client) close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *client) readLoop(conn *websocket.Conn) {
	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			c.log.Debug("read failed", zap.Error(err))
			c.close()
			c.failPending()
			if c.onClose != nil {
				c.onClose()
			}
			return
		}

		switch msg.Op {
		case opEvent:
			var ev eventData
			if err := json.Unmarshal(msg.D, &ev); err != nil {
				continue
			}
			if c.onEvent != nil {
				c.onEvent(ev.EventType, msg.D)
			}
		case opRequestResponse:
			var resp responseData
			if err := json.Unmarshal(msg.D, &resp); err != nil {
				continue
			}
			c.pendingMu.Lock()
			ch, ok := c.pending[resp.RequestID]
			if ok {
				delete(c.pending, resp.RequestID)
			}
			c.pendingMu.Unlock()
			if ok {
				ch <- resp
			}
		}
	}
}

func (c *client) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.pendingMu.Unlock()
}

// call sends a request and waits for its response.
func (c *client) call(ctx context.Context, requestType string, body any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	id := fmt.Sprintf("%d", c.reqID.Add(1))
	req := requestData{RequestType: requestType, RequestID: id}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req.RequestData = data
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	respCh := make(chan responseData, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	c.mu.Lock()
	if c.conn != nil {
		err = c.conn.WriteJSON(envelope{Op: opRequest, D: payload})
	} else {
		err = fmt.Errorf("connection lost")
	}
	c.mu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case resp, ok := <-respCh:
		if !ok {
			return nil, fmt.Errorf("connection lost")
		}
		if !resp.RequestStatus.Result {
			return nil, fmt.Errorf("request %s failed: %s (code %d)", requestType, resp.RequestStatus.Comment, resp.RequestStatus.Code)
		}
		return resp.ResponseData, nil
	}
}

// getVersion is the lightweight health-check round trip.
func (c *client) getVersion(ctx context.Context) error {
	_, err := c.call(ctx, "GetVersion", nil)
	return err
}
