// Package mutation 变异领域 - HTTP 处理（只读）
//
// 变异的状态迁移全部由活动控制器驱动，这里只暴露查询面。
package mutation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"genome-engine/internal/shared/storage"
)

// Handler 变异领域 HTTP 处理器
type Handler struct {
	store interface {
		storage.MutationStore
		storage.MutationTestStore
		storage.HistoryStore
	}
}

// NewHandler 创建变异处理器
func NewHandler(store storage.PersistentStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册变异相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/mutations/{id}", h.Get)
	mux.HandleFunc("GET /api/v1/mutations/{id}/tests", h.ListTests)
	mux.HandleFunc("GET /api/v1/mutations/{id}/history", h.ListHistory)
}

// Get 获取变异详情
// GET /api/v1/mutations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := h.store.GetMutation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get mutation")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "mutation not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListTests 列出变异的评估记录，最新的在前
// GET /api/v1/mutations/{id}/tests
func (h *Handler) ListTests(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tests, err := h.store.ListTestsByMutation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tests": tests, "count": len(tests)})
}

// ListHistory 列出变异的审计台账，按写入顺序
// GET /api/v1/mutations/{id}/history
//
// 支持的查询参数：
//   - limit:  每页条数 (默认 100, 最大 1000)
//   - offset: 偏移量
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	entries, err := h.store.ListHistoryByMutation(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries, "count": len(entries)})
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
