package session

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/handler/apierr"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/pkg/utils"
)

// Sessions is the part of the engine this handler needs.
type Sessions interface {
	CreateSession(ctx context.Context, moduleID, sessionID string) (chat.Session, error)
	Session(ctx context.Context, sessionID string) (chat.Session, []chat.Turn, error)
	Confirm(ctx context.Context, sessionID string) (chat.Session, bool, error)
	Reset(ctx context.Context, sessionID string) error
}

// Handler 会话管理的HTTP处理器
type Handler struct {
	sessions Sessions
	logger   *zap.Logger
}

// New 创建会话处理器
func New(sessions Sessions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, logger: logger.Named("session")}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/confirm", h.handleConfirm)
		r.Delete("/", h.handleReset)
	})
}

// View is the body returned for session reads.
type View struct {
	Session    chat.Session `json:"session"`
	Transcript []chat.Turn  `json:"transcript"`
}

// ConfirmView is the body returned by confirmation.
type ConfirmView struct {
	Session chat.Session `json:"session"`
	Changed bool         `json:"changed"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Module    string `json:"module"`
		SessionID string `json:"sessionId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Module == "" {
		_ = utils.RespondError(w, http.StatusBadRequest, "module is required")
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), payload.Module, payload.SessionID)
	if err != nil {
		apierr.Respond(w, h.logger, err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, turns, err := h.sessions.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		apierr.Respond(w, h.logger, err)
		return
	}
	if turns == nil {
		turns = []chat.Turn{}
	}
	_ = utils.RespondJSON(w, http.StatusOK, View{Session: session, Transcript: turns})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	session, changed, err := h.sessions.Confirm(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		apierr.Respond(w, h.logger, err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, ConfirmView{Session: session, Changed: changed})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Reset(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		apierr.Respond(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
