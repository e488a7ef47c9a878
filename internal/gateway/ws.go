package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentrt/agentrt/pkg/models"
)

const (
	wsProtocolVersion = 1
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 45 * time.Second
	wsPingInterval    = 15 * time.Second
)

func (s *Server) wsHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		client := &wsConn{
			server:     s,
			conn:       conn,
			send:       make(chan []byte, s.cfg.Gateway.EventBuffer),
			ctx:        ctx,
			cancelCtx:  cancel,
			id:         uuid.NewString(),
			writerDone: make(chan struct{}),
		}
		if s.metrics != nil {
			s.metrics.ActiveConnections.Inc()
		}
		client.run()
	})
}

// wsConn is one client connection. Outbound frames flow through the
// bounded send channel: writes block the producer when the client reads
// slowly (backpressure), and a closed connection trips the session's
// cancellation so the producer stops.
type wsConn struct {
	server     *Server
	conn       *websocket.Conn
	send       chan []byte
	ctx        context.Context
	cancelCtx  context.CancelFunc
	writerDone chan struct{}

	id        string
	connected bool

	mu        sync.Mutex
	closed    bool
	sessionID string
}

func (c *wsConn) run() {
	defer c.close()
	go c.writeLoop()
	go c.pingLoop()
	c.readLoop()
}

func (c *wsConn) close() {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	sessionID := c.sessionID
	c.mu.Unlock()
	if alreadyClosed {
		return
	}

	c.cancelCtx()
	// Let the writer flush anything already queued before the socket goes
	// away; a wedged writer is abandoned after the write deadline.
	select {
	case <-c.writerDone:
	case <-time.After(wsWriteWait):
	}
	_ = c.conn.Close()
	if sessionID != "" {
		// A vanished client cannot consume events; stop the generation.
		c.server.sessions.Cancel(sessionID)
	}
	if c.server.metrics != nil {
		c.server.metrics.ActiveConnections.Dec()
	}
}

func (c *wsConn) readLoop() {
	c.conn.SetReadLimit(c.server.cfg.Gateway.MaxPayloadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendErrorFrame("", "invalid_frame", err.Error())
			continue
		}
		if err := validateFrame(data, &frame); err != nil {
			c.sendErrorFrame(frame.ID, "invalid_frame", err.Error())
			continue
		}

		if !c.connected {
			if frame.Method != "connect" {
				c.sendErrorFrame(frame.ID, "handshake_required", "first request must be connect")
				continue
			}
			if err := c.handleConnect(&frame); err != nil {
				// A failed handshake gets a close frame, not silent
				// degradation. Control frames are safe to write
				// concurrently with the write loop.
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseProtocolError, err.Error()),
					time.Now().Add(wsWriteWait))
				return
			}
			continue
		}

		if err := c.handleRequest(&frame); err != nil {
			c.sendErrorFrame(frame.ID, "request_failed", err.Error())
		}
	}
}

func (c *wsConn) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case <-c.ctx.Done():
			c.drain()
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if !c.writeMessage(msg) {
				go c.close()
				return
			}
		}
	}
}

// drain flushes frames already queued at shutdown, so a terminal error or
// close reason is not lost to the ctx/send select race.
func (c *wsConn) drain() {
	for {
		select {
		case msg := <-c.send:
			if !c.writeMessage(msg) {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) writeMessage(msg []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
	return c.conn.WriteMessage(websocket.TextMessage, msg) == nil
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *wsConn) handleConnect(frame *wsFrame) error {
	var params wsConnectParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		return err
	}
	if wsProtocolVersion < params.MinProtocol || wsProtocolVersion > params.MaxProtocol {
		return fmt.Errorf("unsupported protocol version")
	}

	session, err := c.server.sessions.GetOrCreate(c.ctx, params.SessionID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sessionID = session.ID
	c.mu.Unlock()

	if err := c.sendResponse(frame.ID, map[string]any{
		"protocol":  wsProtocolVersion,
		"sessionId": session.ID,
	}); err != nil {
		return err
	}
	c.connected = true
	return nil
}

func (c *wsConn) handleRequest(frame *wsFrame) error {
	switch frame.Method {
	case "send":
		return c.handleSend(frame)
	case "cancel":
		c.server.sessions.Cancel(c.session())
		return c.sendResponse(frame.ID, map[string]any{"status": "cancelling"})
	case "reset":
		return c.handleReset(frame)
	case "resume":
		return c.handleResume(frame)
	default:
		return fmt.Errorf("unknown method %q", frame.Method)
	}
}

func (c *wsConn) handleSend(frame *wsFrame) error {
	var params wsSendParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		return err
	}
	if params.Text == "" {
		return fmt.Errorf("empty draft")
	}
	return c.server.dispatchSend(c, frame.ID, params.Text, params.CharacterState)
}

func (c *wsConn) handleReset(frame *wsFrame) error {
	if err := c.server.sessions.Reset(c.ctx, c.session()); err != nil {
		return err
	}
	return c.sendResponse(frame.ID, map[string]any{"status": "reset"})
}

func (c *wsConn) handleResume(frame *wsFrame) error {
	var params wsResumeParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		return err
	}

	session, err := c.server.sessions.GetOrCreate(c.ctx, params.SessionID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sessionID = session.ID
	c.mu.Unlock()

	if c.server.metrics != nil {
		c.server.metrics.SessionsResumed.Inc()
	}

	if err := c.sendEvent("session_resumed", map[string]any{"count": len(session.Messages)}); err != nil {
		return err
	}
	return c.sendEvent("history", map[string]any{"messages": session.Messages})
}

func (c *wsConn) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// forward pushes one StreamEvent to the client. Blocking on the bounded
// channel is the backpressure contract; a closed connection drops the
// event (cancellation is already tripped by close).
func (c *wsConn) forward(ev models.StreamEvent) {
	c.write(eventFrame(ev))
}

func (c *wsConn) sendEvent(event string, payload any) error {
	return c.write(wsFrame{Type: "event", Event: event, Payload: payload})
}

func (c *wsConn) sendResponse(id string, payload any) error {
	ok := true
	return c.write(wsFrame{Type: "res", ID: id, OK: &ok, Payload: payload})
}

func (c *wsConn) sendErrorFrame(id, code, message string) {
	ok := false
	_ = c.write(wsFrame{Type: "res", ID: id, OK: &ok, Error: &wsError{Code: code, Message: message}})
}

func (c *wsConn) write(frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		c.server.logger.Error(context.Background(), "marshal frame", "error", err)
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("connection closed")
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("connection closed")
	}
}
