// Package campaign 活动领域 - HTTP 处理
//
// 活动的实际推进由引擎管理器（controller.Manager）负责：
// start 只是入队，cancel 路由到在途执行或直接落盘。
package campaign

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"genome-engine/internal/engine/controller"
	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
)

// Handler 活动领域 HTTP 处理器
type Handler struct {
	store   storage.PersistentStore
	manager *controller.Manager
}

// NewHandler 创建活动处理器
func NewHandler(store storage.PersistentStore, manager *controller.Manager) *Handler {
	return &Handler{store: store, manager: manager}
}

// RegisterRoutes 注册活动相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/campaigns", h.List)
	mux.HandleFunc("POST /api/v1/campaigns", h.Create)
	mux.HandleFunc("GET /api/v1/campaigns/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/campaigns/{id}/start", h.Start)
	mux.HandleFunc("POST /api/v1/campaigns/{id}/cancel", h.Cancel)
	mux.HandleFunc("GET /api/v1/campaigns/{id}/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/campaigns/{id}/mutations", h.ListMutations)
}

// CreateRequest 创建活动的请求体
//
// Configuration 为空时使用默认配置；非空时整体替换（不做字段级合并）。
type CreateRequest struct {
	GenomeID      string                       `json:"genome_id"`
	Name          string                       `json:"name"`
	Description   string                       `json:"description,omitempty"`
	TargetMetric  string                       `json:"target_metric"`
	Configuration *model.CampaignConfiguration `json:"configuration,omitempty"`
}

// Create 创建活动
// POST /api/v1/campaigns
//
// 配置在这里就被校验：权重和不为 1.0、未知目标指标等
// 非法配置直接 400，不会留下一个注定失败的活动。
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GenomeID == "" {
		writeError(w, http.StatusBadRequest, "genome_id is required")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	cfg := model.DefaultConfiguration()
	if req.Configuration != nil {
		cfg = *req.Configuration
	}
	if err := cfg.Validate(req.TargetMetric); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	genome, err := h.store.GetGenome(r.Context(), req.GenomeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get genome")
		return
	}
	if genome == nil {
		writeError(w, http.StatusBadRequest, "genome not found")
		return
	}

	c := &model.Campaign{
		ID:            generateID("camp"),
		GenomeID:      req.GenomeID,
		Name:          req.Name,
		Description:   req.Description,
		TargetMetric:  req.TargetMetric,
		Configuration: cfg,
		Status:        model.CampaignStatusPending,
	}
	if err := h.store.CreateCampaign(r.Context(), c); err != nil {
		log.Printf("[campaign.create.failed] error=%v", err)
		writeError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Get 获取活动详情
// GET /api/v1/campaigns/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get campaign")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// List 列出活动
// GET /api/v1/campaigns
//
// 支持的查询参数：
//   - status: 按状态筛选
//   - limit:  每页条数 (默认 20, 最大 100)
//   - offset: 偏移量
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	campaigns, err := h.store.ListCampaigns(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": campaigns, "count": len(campaigns)})
}

// Start 启动一次活动执行
// POST /api/v1/campaigns/{id}/start
//
// 只受理，不等待：执行以 queued 入队，由引擎管理器拾取推进。
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.manager.StartCampaignRun(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "campaign not found")
		case errors.Is(err, storage.ErrConflict):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("[campaign.start.failed] campaign_id=%s error=%v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to start campaign")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

// CancelRequest 取消活动的请求体
type CancelRequest struct {
	Mode string `json:"mode,omitempty"`
}

// Cancel 取消活动
// POST /api/v1/campaigns/{id}/cancel
//
// mode 取 body 或查询参数（body 优先），默认 drain：
//   - drain:   已派发的评估完成后照常打分/应用，然后停止
//   - abandon: 取消时间点之后返回的评估结果直接丢弃
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	modeStr := r.URL.Query().Get("mode")
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Mode != "" {
		modeStr = req.Mode
	}
	if modeStr == "" {
		modeStr = string(model.CancelDrain)
	}

	mode := model.CancellationMode(modeStr)
	switch mode {
	case model.CancelDrain, model.CancelAbandon:
	default:
		writeError(w, http.StatusBadRequest, "mode must be drain or abandon")
		return
	}

	if err := h.manager.CancelCampaign(r.Context(), id, mode); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "campaign not found")
		case errors.Is(err, storage.ErrConflict):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("[campaign.cancel.failed] campaign_id=%s error=%v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to cancel campaign")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "mode": string(mode)})
}

// ListRuns 列出活动的执行记录
// GET /api/v1/campaigns/{id}/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	runs, err := h.store.ListRunsByCampaign(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

// ListMutations 列出活动的变异，按序号升序
// GET /api/v1/campaigns/{id}/mutations
func (h *Handler) ListMutations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	mutations, err := h.store.ListMutationsByCampaign(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list mutations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mutations": mutations, "count": len(mutations)})
}
