package module

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/pkg/utils"
)

// Handler module服务的HTTP处理器
type Handler struct {
	modules module.Store
}

// New 创建module处理器
func New(modules module.Store) *Handler {
	return &Handler{modules: modules}
}

// RegisterRoutes 注册module相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/modules", h.handleListModules)
}

// Summary is the public view of a module.
type Summary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	OpeningLine string           `json:"openingLine"`
	Stages      module.StageView `json:"stages"`
}

// handleListModules 列出所有module
func (h *Handler) handleListModules(w http.ResponseWriter, r *http.Request) {
	defs := h.modules.List()
	out := make([]Summary, 0, len(defs))
	for _, def := range defs {
		out = append(out, Summary{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			OpeningLine: def.OpeningLine,
			Stages:      def.View(),
		})
	}
	_ = utils.RespondJSON(w, http.StatusOK, out)
}
