// Package server 路由配置
package server

import (
	"net/http"

	"genome-engine/internal/apiserver/campaign"
	"genome-engine/internal/apiserver/genome"
	"genome-engine/internal/apiserver/mutation"
	"genome-engine/internal/apiserver/suggestion"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//
// 基因组管理 (Genome):
//   - GET    /api/v1/genomes                  - 列出基因组
//   - POST   /api/v1/genomes                  - 创建基因组
//   - GET    /api/v1/genomes/{id}             - 获取基因组详情
//   - POST   /api/v1/genomes/{id}/archive     - 归档基因组
//
// 活动管理 (Campaign):
//   - GET    /api/v1/campaigns                - 列出活动
//   - POST   /api/v1/campaigns                - 创建活动（即时校验配置）
//   - GET    /api/v1/campaigns/{id}           - 获取活动详情
//   - POST   /api/v1/campaigns/{id}/start     - 启动一次执行（入队）
//   - POST   /api/v1/campaigns/{id}/cancel    - 取消 (mode=drain|abandon)
//   - GET    /api/v1/campaigns/{id}/runs      - 列出执行记录
//   - GET    /api/v1/campaigns/{id}/mutations - 列出变异
//
// 变异查询 (Mutation):
//   - GET    /api/v1/mutations/{id}           - 获取变异详情
//   - GET    /api/v1/mutations/{id}/tests     - 列出评估记录
//   - GET    /api/v1/mutations/{id}/history   - 列出审计台账
//
// 建议审阅 (Suggestion):
//   - GET    /api/v1/genomes/{id}/suggestions - 列出建议
//   - POST   /api/v1/genomes/{id}/suggest     - 按需顾问扫描
//   - POST   /api/v1/suggestions/{id}/accept  - 接受建议
//   - POST   /api/v1/suggestions/{id}/dismiss - 驳回建议
//
// WebSocket:
//   - GET    /ws/campaigns/{id}/events        - 实时变异事件推送
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// Genome 接口
	genomeHandler := genome.NewHandler(h.store)
	genomeHandler.RegisterRoutes(mux)

	// Campaign 接口（start/cancel 经由引擎管理器）
	campaignHandler := campaign.NewHandler(h.store, h.manager)
	campaignHandler.RegisterRoutes(mux)

	// Mutation 接口（只读）
	mutationHandler := mutation.NewHandler(h.store)
	mutationHandler.RegisterRoutes(mux)

	// Suggestion 接口
	suggestionHandler := suggestion.NewHandler(h.store, h.advisor)
	suggestionHandler.RegisterRoutes(mux)

	// 操作者身份 + 指标中间件
	apiHandler := h.metrics.MetricsMiddleware(actorMiddleware(mux))

	// CORS 中间件
	corsHandler := corsMiddleware(apiHandler)

	// 顶层路由：WebSocket 绕过 metrics 中间件（避免 http.Hijacker 问题）
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /ws/campaigns/{id}/events", h.eventGateway.HandleWebSocket)
	topMux.Handle("/", corsHandler)

	return topMux
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
