package stream

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/handler/apierr"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/service/profiling"
	"github.com/lifecraft/profiler/backend/pkg/utils"
)

// TurnRunner starts orchestrator runs.
type TurnRunner interface {
	HandleTurn(ctx context.Context, req profiling.TurnRequest) (*profiling.Run, error)
}

// Handler streams turn events via Server-Sent Events.
type Handler struct {
	engine TurnRunner
	logger *zap.Logger
}

// New creates a new stream handler
func New(engine TurnRunner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, logger: logger.Named("stream")}
}

// RegisterRoutes 注册流式对话路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/stream", h.handleStream)
}

// Request is the body of a streaming turn.
type Request struct {
	SessionID string     `json:"sessionId"`
	Module    string     `json:"module"`
	Message   string     `json:"message"`
	Stage     chat.Stage `json:"stage"`
	Context   string     `json:"context"`
}

// TurnRequest converts the wire body into an engine request.
func (r Request) TurnRequest() profiling.TurnRequest {
	return profiling.TurnRequest{
		SessionID: r.SessionID,
		Module:    r.Module,
		Message:   r.Message,
		StageHint: r.Stage,
		Context:   r.Context,
	}
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var body Request
	if err := utils.DecodeJSON(r, &body); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 校验错误在写出 SSE 头之前返回，调用方能拿到正常的状态码。
	run, err := h.engine.HandleTurn(ctx, body.TurnRequest())
	if err != nil {
		apierr.Respond(w, h.logger, err)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	writable := true
	for ev := range run.Events {
		if !writable {
			continue
		}
		if err := utils.SendSSEChunk(w, flusher, ev); err != nil {
			// 客户端已断开：取消生成，继续消费事件直到引擎收尾。
			writable = false
			cancel()
			h.logger.Debug("client went away", zap.String("session", body.SessionID), zap.Error(err))
		}
	}
}
