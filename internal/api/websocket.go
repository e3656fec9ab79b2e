package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/pkg/receiptformat"
)

// WebSocket message types
const (
	EventLog            = "log"
	EventPrint          = "print"
	EventPrintResult    = "print_result"
	EventJobUpdate      = "job_update"
	EventPrinterAdded   = "printer_added"
	EventPrinterRemoved = "printer_removed"
	EventResponse       = "response"
	EventError          = "error"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
)

// WSMessage is an outbound WebSocket message
type WSMessage struct {
	Event string      `json:"event"`
	ID    string      `json:"id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// inboundMessage keeps data raw so print requests decode leniently
type inboundMessage struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// LogEvent is the data of a log message
type LogEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Hub fans events out to connected WebSocket clients. It implements
// logging.Sink. A client whose buffer is full misses events.
type Hub struct {
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
	closed  bool
	logger  *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*WSClient]struct{}),
		logger:  logger,
	}
}

// Log implements logging.Sink
func (h *Hub) Log(level, message string) {
	h.Broadcast(WSMessage{Event: EventLog, Data: LogEvent{Level: level, Message: message}})
}

// BroadcastResult publishes a dispatch outcome
func (h *Hub) BroadcastResult(out dispatch.Outcome) {
	h.Broadcast(WSMessage{Event: EventPrintResult, Data: out})
}

// BroadcastJob publishes a queue status change
func (h *Hub) BroadcastJob(job dispatch.Job) {
	h.Broadcast(WSMessage{Event: EventJobUpdate, Data: job})
}

// BroadcastPrinterAdded publishes a newly seen printer
func (h *Hub) BroadcastPrinterAdded(d printer.Descriptor) {
	h.Broadcast(WSMessage{Event: EventPrinterAdded, Data: d})
}

// BroadcastPrinterRemoved publishes a printer that disappeared
func (h *Hub) BroadcastPrinterRemoved(d printer.Descriptor) {
	h.Broadcast(WSMessage{Event: EventPrinterRemoved, Data: d})
}

// Broadcast sends msg to every client without blocking. It never logs, so
// the hub can sit behind the logger it would log to.
func (h *Hub) Broadcast(msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Client send buffer full, skip
		}
	}
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) add(client *WSClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = struct{}{}
	return true
}

func (h *Hub) remove(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, sendBuffer),
		server: s,
	}
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	s.logger.Info("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.hub.remove(c)
		c.conn.Close()
		c.server.logger.Info("websocket client disconnected")
	}()

	c.conn.SetReadLimit(maxBody)
	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *inboundMessage) {
	switch msg.Event {
	case EventPrint:
		c.handlePrintEvent(msg)
	default:
		c.sendError(msg.ID, "unknown event: "+msg.Event)
	}
}

// handlePrintEvent runs the print off the read loop and answers with a
// response carrying the outcome. Every client also sees print_result.
func (c *WSClient) handlePrintEvent(msg *inboundMessage) {
	req, err := receiptformat.ParseRequest(msg.Data)
	if err != nil {
		c.sendError(msg.ID, "invalid print request: "+err.Error())
		return
	}
	if err := receiptformat.Validate(req); err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	go func() {
		out := c.server.dispatcher.PrintReceipt(context.Background(), req)
		c.reply(WSMessage{Event: EventResponse, ID: msg.ID, Data: out})
	}()
}

func (c *WSClient) sendError(id, message string) {
	c.reply(WSMessage{Event: EventError, ID: id, Data: gin.H{"error": message}})
}

// reply queues msg for this client unless it has already gone away
func (c *WSClient) reply(msg WSMessage) {
	hub := c.server.hub
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if _, ok := hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
