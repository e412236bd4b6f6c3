package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/heimdex/timeline-agent/internal/enginesync"
	"github.com/heimdex/timeline-agent/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 64 * 1024

	rendererQueue = "RENDERER"

	actionLoadPreview  = "LOAD_PREVIEW"
	actionClearPreview = "CLEAR_PREVIEW"
)

var (
	ErrNoRenderer = errors.New("no renderer connected")
	errConnClosed = errors.New("renderer connection closed")
)

// rendererFrame is an imperative call on the renderer that expects an ack.
type rendererFrame struct {
	QueueName string `json:"queueName"`
	Action    string `json:"action"`
	RequestID string `json:"request_id"`
	Data      any    `json:"data"`
}

type previewData struct {
	NodeID string `json:"node_id"`
	URL    string `json:"url,omitempty"`
}

// inbound is the only message renderers send: an ack for a rendererFrame.
type inbound struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`
}

// Bridge connects renderer websockets to the engine queue. Every connection
// is its own dispatcher sink; a connection that cannot keep up is dropped.
type Bridge struct {
	dispatcher *enginesync.Dispatcher
	buffer     int
	ackTimeout time.Duration
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	conns   map[string]*rendererConn
	pending map[string]chan error
}

func NewBridge(dispatcher *enginesync.Dispatcher, buffer int, ackTimeout time.Duration, logger *slog.Logger) *Bridge {
	if buffer <= 0 {
		buffer = 256
	}
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}
	return &Bridge{
		dispatcher: dispatcher,
		buffer:     buffer,
		ackTimeout: ackTimeout,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || isAllowedOrigin(origin)
			},
		},
		conns:   make(map[string]*rendererConn),
		pending: make(map[string]chan error),
	}
}

func (b *Bridge) ConnCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Serve upgrades the request and blocks until the connection ends.
func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &rendererConn{
		id:     uuid.NewString()[:8],
		ws:     ws,
		send:   make(chan []byte, b.buffer),
		done:   make(chan struct{}),
		logger: b.logger,
	}
	c.logger = logging.WithConnID(b.logger, c.id)

	b.mu.Lock()
	b.conns[c.id] = c
	b.mu.Unlock()
	unsubscribe := b.dispatcher.Subscribe(c)
	c.logger.Info("renderer connected", "remote_addr", r.RemoteAddr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()

	c.readPump(b)

	unsubscribe()
	b.mu.Lock()
	delete(b.conns, c.id)
	b.mu.Unlock()
	c.close()
	wg.Wait()
	c.logger.Info("renderer disconnected")
}

func (b *Bridge) LoadPreview(ctx context.Context, nodeID, url string) error {
	return b.call(ctx, actionLoadPreview, previewData{NodeID: nodeID, URL: url})
}

func (b *Bridge) ClearPreview(ctx context.Context, nodeID string) error {
	return b.call(ctx, actionClearPreview, previewData{NodeID: nodeID})
}

// call sends a renderer frame to every connection and waits for the first ack.
func (b *Bridge) call(ctx context.Context, action string, data any) error {
	requestID := uuid.NewString()
	payload, err := json.Marshal(rendererFrame{
		QueueName: rendererQueue,
		Action:    action,
		RequestID: requestID,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode renderer frame: %w", err)
	}

	ack := make(chan error, 1)
	b.mu.Lock()
	conns := make([]*rendererConn, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.pending[requestID] = ack
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
	}()

	sent := 0
	for _, c := range conns {
		if err := c.enqueue(payload); err == nil {
			sent++
		}
	}
	if sent == 0 {
		return ErrNoRenderer
	}

	ctx, cancel := context.WithTimeout(ctx, b.ackTimeout)
	defer cancel()
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s: waiting for renderer: %w", action, ctx.Err())
	}
}

func (b *Bridge) resolve(msg inbound) {
	b.mu.Lock()
	ack, ok := b.pending[msg.RequestID]
	if ok {
		delete(b.pending, msg.RequestID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	if msg.Error != "" {
		ack <- fmt.Errorf("renderer: %s", msg.Error)
		return
	}
	ack <- nil
}

type rendererConn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (c *rendererConn) Name() string {
	return "renderer:" + c.id
}

// Deliver translates msg into a renderer frame and queues it for writing.
func (c *rendererConn) Deliver(_ context.Context, msg enginesync.Message) error {
	frame, err := enginesync.Translate(msg)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return c.enqueue(data)
}

func (c *rendererConn) enqueue(data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.close()
		return fmt.Errorf("%s: send buffer full, connection dropped", c.Name())
	}
}

func (c *rendererConn) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *rendererConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("renderer write failed", "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *rendererConn) readPump(b *Bridge) {
	c.ws.SetReadLimit(maxInboundSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("renderer read failed", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "ack" || msg.RequestID == "" {
			continue
		}
		b.resolve(msg)
	}
}
