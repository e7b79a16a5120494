// Package suggestion 建议领域 - HTTP 处理
//
// 建议由顾问写入；操作者在这里审阅（accept/dismiss）或
// 触发一次按需扫描。
package suggestion

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"genome-engine/internal/engine/advisor"
	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
)

// Handler 建议领域 HTTP 处理器
type Handler struct {
	store   storage.SuggestionStore
	advisor *advisor.Advisor
}

// NewHandler 创建建议处理器
func NewHandler(store storage.SuggestionStore, adv *advisor.Advisor) *Handler {
	return &Handler{store: store, advisor: adv}
}

// RegisterRoutes 注册建议相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/genomes/{id}/suggestions", h.ListByGenome)
	mux.HandleFunc("POST /api/v1/genomes/{id}/suggest", h.Suggest)
	mux.HandleFunc("POST /api/v1/suggestions/{id}/accept", h.Accept)
	mux.HandleFunc("POST /api/v1/suggestions/{id}/dismiss", h.Dismiss)
}

// ListByGenome 列出基因组的建议
// GET /api/v1/genomes/{id}/suggestions
//
// 支持的查询参数：
//   - status: 按状态筛选 (new/accepted/dismissed)
func (h *Handler) ListByGenome(w http.ResponseWriter, r *http.Request) {
	genomeID := r.PathValue("id")
	suggestions, err := h.store.ListSuggestionsByGenome(r.Context(), genomeID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list suggestions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions, "count": len(suggestions)})
}

// Suggest 对基因组做一次按需顾问扫描
// POST /api/v1/genomes/{id}/suggest
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	genomeID := r.PathValue("id")
	suggestions, err := h.advisor.Scan(r.Context(), genomeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "genome not found")
			return
		}
		log.Printf("[suggestion.scan.failed] genome_id=%s error=%v", genomeID, err)
		writeError(w, http.StatusInternalServerError, "advisor scan failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions, "count": len(suggestions)})
}

// Accept 接受建议
// POST /api/v1/suggestions/{id}/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, model.SuggestionStatusAccepted)
}

// Dismiss 驳回建议
// POST /api/v1/suggestions/{id}/dismiss
func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, model.SuggestionStatusDismissed)
}

// updateStatus 建议状态迁移：只允许 new → accepted/dismissed
func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, status model.SuggestionStatus) {
	id := r.PathValue("id")
	if err := h.store.UpdateSuggestionStatus(r.Context(), id, status); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "suggestion not found")
		case errors.Is(err, storage.ErrConflict):
			writeError(w, http.StatusConflict, "suggestion has already been reviewed")
		default:
			log.Printf("[suggestion.update.failed] suggestion_id=%s error=%v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to update suggestion")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 写入错误响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
