// Package genome 基因组领域 - HTTP 处理
package genome

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
)

// Handler 基因组领域 HTTP 处理器
type Handler struct {
	store storage.GenomeStore // 使用接口类型
}

// NewHandler 创建基因组处理器
func NewHandler(store storage.GenomeStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册基因组相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/genomes", h.List)
	mux.HandleFunc("POST /api/v1/genomes", h.Create)
	mux.HandleFunc("GET /api/v1/genomes/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/genomes/{id}/archive", h.Archive)
}

// CreateRequest 创建基因组的请求体
type CreateRequest struct {
	Name          string          `json:"name"`
	UserID        string          `json:"user_id"`
	Data          json.RawMessage `json:"data"`
	RepositoryURL *string         `json:"repository_url,omitempty"`
	// Status 可选，默认 draft；只接受 draft/active
	Status string `json:"status,omitempty"`
}

// Create 创建基因组
// POST /api/v1/genomes
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Data) == 0 || !json.Valid(req.Data) {
		writeError(w, http.StatusBadRequest, "data must be a JSON payload")
		return
	}

	status := model.GenomeStatusDraft
	switch req.Status {
	case "":
	case string(model.GenomeStatusDraft), string(model.GenomeStatusActive):
		status = model.GenomeStatus(req.Status)
	default:
		writeError(w, http.StatusBadRequest, "status must be draft or active")
		return
	}

	g := &model.Genome{
		ID:            generateID("genome"),
		Name:          req.Name,
		UserID:        req.UserID,
		Data:          req.Data,
		Status:        status,
		RepositoryURL: req.RepositoryURL,
	}
	if err := h.store.CreateGenome(r.Context(), g); err != nil {
		log.Printf("[genome.create.failed] error=%v", err)
		writeError(w, http.StatusInternalServerError, "failed to create genome")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Get 获取基因组详情
// GET /api/v1/genomes/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, err := h.store.GetGenome(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get genome")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "genome not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// List 列出基因组
// GET /api/v1/genomes
//
// 支持的查询参数：
//   - status: 按状态筛选 (draft/active/archived)
//   - limit:  每页条数 (默认 20, 最大 100)
//   - offset: 偏移量
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	genomes, err := h.store.ListGenomes(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list genomes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"genomes": genomes, "count": len(genomes)})
}

// Archive 归档基因组
// POST /api/v1/genomes/{id}/archive
//
// 基因组从不物理删除；归档后不再可变异。
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.UpdateGenomeStatus(r.Context(), id, model.GenomeStatusArchived); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "genome not found")
			return
		}
		log.Printf("[genome.archive.failed] genome_id=%s error=%v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to archive genome")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.GenomeStatusArchived)})
}
