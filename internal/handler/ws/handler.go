package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/handler/apierr"
	"github.com/lifecraft/profiler/backend/internal/handler/stream"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	pendingTurns = 4
)

// TypeTurn is the only inbound message type.
const TypeTurn = "turn"

// Handler carries turn events over a WebSocket connection.
type Handler struct {
	engine   stream.TurnRunner
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(engine stream.TurnRunner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine: engine,
		logger: logger.Named("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// Inbound is one client message. Data holds a turn body for TypeTurn.
type Inbound struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TurnData is the payload of a turn message. The session id comes from the
// connection path.
type TurnData struct {
	Module  string     `json:"module"`
	Message string     `json:"message"`
	Stage   chat.Stage `json:"stage"`
	Context string     `json:"context"`
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	c := &conn{Conn: ws}
	defer c.Close()

	log := h.logger.With(zap.String("session", sessionID))
	log.Debug("connection opened")

	// 读取失败或对端关闭时取消，进行中的回合随之取消。
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = c.SetReadDeadline(time.Now().Add(readTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, c)

	turns := make(chan json.RawMessage, pendingTurns)
	go h.readLoop(ctx, cancel, c, sessionID, turns, log)

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-turns:
			if err := h.handleTurn(ctx, c, sessionID, raw); err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

// readLoop keeps reading while a turn runs so close frames and pongs are
// seen. Turn messages are queued for the connection's turn loop.
func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, c *conn, sessionID string, turns chan<- json.RawMessage, log *zap.Logger) {
	defer cancel()
	for {
		var msg Inbound
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(c, "session mismatch")
			continue
		}

		switch msg.Type {
		case TypeTurn:
			select {
			case turns <- msg.Data:
			case <-ctx.Done():
				return
			default:
				h.sendError(c, "too many pending turns")
			}
		default:
			h.sendError(c, "unsupported message type: "+msg.Type)
		}
	}
}

// handleTurn runs one turn and forwards its events. The returned error is a
// write failure; turn failures are reported to the client as error events.
func (h *Handler) handleTurn(ctx context.Context, c *conn, sessionID string, raw json.RawMessage) error {
	var data TurnData
	if err := json.Unmarshal(raw, &data); err != nil {
		return c.send(chat.ErrorEvent("invalid turn payload"))
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req := stream.Request{
		SessionID: sessionID,
		Module:    data.Module,
		Message:   data.Message,
		Stage:     data.Stage,
		Context:   data.Context,
	}
	run, err := h.engine.HandleTurn(turnCtx, req.TurnRequest())
	if err != nil {
		status, message := apierr.Status(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("turn failed", zap.String("session", sessionID), zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.send(chat.ErrorEvent(message))
	}

	var writeErr error
	for ev := range run.Events {
		if writeErr != nil {
			continue
		}
		if writeErr = c.send(ev); writeErr != nil {
			// 客户端已不可写，停止生成，事件流随后关闭。
			cancel()
		}
	}
	return writeErr
}

func (h *Handler) sendError(c *conn, message string) {
	if err := c.send(chat.ErrorEvent(message)); err != nil {
		h.logger.Debug("write error failed", zap.Error(err))
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
