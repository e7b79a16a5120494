// Package server 提供 HTTP API 处理器
//
// 本包实现基因组变异引擎的 RESTful API 入口，包括：
//   - 基因组管理（Genome）接口
//   - 活动管理（Campaign）接口
//   - 变异查询（Mutation）接口
//   - 建议审阅（Suggestion）接口
//   - WebSocket 实时事件推送
//
// 文件组织：
//   - common.go: Handler 定义、通用工具函数、操作者中间件
//   - handler.go: 路由配置
//   - websocket.go: WebSocket 事件网关
//   - metrics.go: Prometheus 指标
package server

import (
	"encoding/json"
	"net/http"

	"genome-engine/internal/engine/advisor"
	"genome-engine/internal/engine/controller"
	"genome-engine/internal/engine/history"
	"genome-engine/internal/shared/eventbus"
	"genome-engine/internal/shared/queue"
	"genome-engine/internal/shared/storage"
)

// DefaultActor 请求未携带 X-Actor 头时的审计身份
const DefaultActor = "operator"

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到各领域独立包
//   - 管理存储层连接
//   - 协调引擎管理器、顾问和事件网关
//
// 依赖接口说明（接口隔离原则）：
//   - runQueue: 执行启动队列（start 入队，引擎管理器消费）
//   - campaignEvents: 活动事件总线（WebSocket 推送）
//
// 两个接口都可为 nil：队列缺失时引擎走保底轮询，
// 事件总线缺失时 WebSocket 网关降级为数据库轮询。
type Handler struct {
	store storage.PersistentStore

	runQueue       queue.CampaignRunQueue
	campaignEvents eventbus.CampaignEventBus

	manager      *controller.Manager
	advisor      *advisor.Advisor
	eventGateway *EventGateway
	metrics      *Metrics
}

// NewHandler 创建 Handler 实例
func NewHandler(store storage.PersistentStore, runQueue queue.CampaignRunQueue, campaignEvents eventbus.CampaignEventBus, manager *controller.Manager, adv *advisor.Advisor) *Handler {
	h := &Handler{
		store:          store,
		runQueue:       runQueue,
		campaignEvents: campaignEvents,
		manager:        manager,
		advisor:        adv,
	}
	h.eventGateway = NewEventGateway(store, campaignEvents)
	h.metrics = NewMetrics("engine")
	h.eventGateway.SetMetrics(h.metrics)
	return h
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actorMiddleware 把 X-Actor 头解出的操作者身份注入请求上下文
//
// 台账与建议状态迁移记录的 actor 都从这里来；
// 未携带时落默认身份，保证审计链上没有空洞。
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := r.Header.Get("X-Actor")
		if actor == "" {
			actor = DefaultActor
		}
		next.ServeHTTP(w, r.WithContext(history.WithActor(r.Context(), actor)))
	})
}
