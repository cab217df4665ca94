package suggest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/handler/apierr"
	"github.com/lifecraft/profiler/backend/internal/service/suggest"
	"github.com/lifecraft/profiler/backend/pkg/utils"
)

// Suggester produces structured suggestions.
type Suggester interface {
	Suggest(ctx context.Context, moduleID, userContext string) (suggest.Result, error)
}

// Handler serves the non-streaming suggestion endpoint.
type Handler struct {
	svc    Suggester
	logger *zap.Logger
}

// New creates a suggestion handler.
func New(svc Suggester, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("suggest")}
}

// RegisterRoutes 注册建议路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/suggest", h.handleSuggest)
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Module  string `json:"module"`
		Context string `json:"context"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Suggest(r.Context(), payload.Module, payload.Context)
	if err != nil {
		apierr.Respond(w, h.logger, err)
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, res)
}
