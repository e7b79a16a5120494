// Package server WebSocket 事件网关
//
// EventGateway 负责把活动（Campaign）的变异事件实时推送给浏览器端：
//   - 有事件总线时：订阅 Redis Stream，事件驱动推送
//   - 无事件总线（或订阅失败）时：降级为数据库台账轮询
//
// 消息格式（JSON）：
//   - {"type": "event", "data": {...}}   变异事件 / 台账记录
//   - {"type": "status", "data": {...}}  活动进入终止状态，发送后关闭连接
//   - {"type": "pong"}                   心跳应答
package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"genome-engine/internal/shared/eventbus"
	"genome-engine/internal/shared/model"
)

const (
	// 轮询模式参数
	pollInterval  = 500 * time.Millisecond
	pollBatchSize = 100

	// 事件总线模式连接时回放的历史事件上限
	eventBacklogLimit = 200

	// 单条消息写超时
	writeWait = 10 * time.Second
)

// upgrader WebSocket 协议升级器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS 已在 HTTP 层处理
		return true
	},
}

// eventStore 事件网关需要的最小存储接口
type eventStore interface {
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListHistoryByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]*model.HistoryEntry, error)
}

// wsMessage 推送给客户端的消息信封
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// EventGateway WebSocket 事件网关
//
// clients 按 CampaignID 维护连接集合，Broadcast 据此定向推送。
// campaignEvents 可为 nil，此时所有连接走轮询模式。
type EventGateway struct {
	store          eventStore
	campaignEvents eventbus.CampaignEventBus

	clients map[string]map[*websocket.Conn]bool
	mu      sync.RWMutex

	// 同一连接可能被 Broadcast 和连接自身的推送循环并发写，
	// gorilla/websocket 不允许并发 WriteJSON
	sendMu sync.Mutex

	metrics *Metrics // 可为 nil
}

// NewEventGateway 创建事件网关
func NewEventGateway(store eventStore, campaignEvents eventbus.CampaignEventBus) *EventGateway {
	return &EventGateway{
		store:          store,
		campaignEvents: campaignEvents,
		clients:        make(map[string]map[*websocket.Conn]bool),
	}
}

// SetMetrics 设置指标回调
func (g *EventGateway) SetMetrics(m *Metrics) {
	g.metrics = m
}

// ============================================================================
// 客户端连接管理
// ============================================================================

// addClient 注册客户端连接
func (g *EventGateway) addClient(campaignID string, conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.clients[campaignID] == nil {
		g.clients[campaignID] = make(map[*websocket.Conn]bool)
	}
	g.clients[campaignID][conn] = true
}

// removeClient 移除客户端连接，最后一个客户端移除后清理 CampaignID 条目
func (g *EventGateway) removeClient(campaignID string, conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	conns, ok := g.clients[campaignID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(g.clients, campaignID)
	}
}

// Broadcast 向指定活动的所有客户端广播消息
func (g *EventGateway) Broadcast(campaignID string, data interface{}) {
	g.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(g.clients[campaignID]))
	for conn := range g.clients[campaignID] {
		conns = append(conns, conn)
	}
	g.mu.RUnlock()

	for _, conn := range conns {
		if err := g.send(conn, &wsMessage{Type: "event", Data: data}); err != nil {
			log.Printf("[ws.broadcast.failed] campaign_id=%s error=%v", campaignID, err)
			g.removeClient(campaignID, conn)
			conn.Close()
		}
	}
}

// send 序列化写入单条消息
func (g *EventGateway) send(conn *websocket.Conn, msg *wsMessage) error {
	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	if g.metrics != nil {
		g.metrics.RecordWSMessage("out", msg.Type)
	}
	return nil
}

// ============================================================================
// WebSocket 请求处理
// ============================================================================

// HandleWebSocket 处理 WebSocket 连接请求
//
// 路由: GET /ws/campaigns/{id}/events
//
// 查询参数:
//   - from_seq: 断线重连时跳过已收到的台账记录数（仅轮询模式）
func (g *EventGateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	campaignID := r.PathValue("id")
	if campaignID == "" {
		http.Error(w, "campaign id is required", http.StatusBadRequest)
		return
	}

	fromSeq := 0
	if v := r.URL.Query().Get("from_seq"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			fromSeq = n
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws.upgrade.failed] campaign_id=%s error=%v", campaignID, err)
		return
	}
	defer conn.Close()

	if g.metrics != nil {
		g.metrics.WSConnectionOpened()
		defer g.metrics.WSConnectionClosed()
	}

	g.addClient(campaignID, conn)
	defer g.removeClient(campaignID, conn)

	log.Printf("[ws.connected] campaign_id=%s from_seq=%d remote=%s", campaignID, fromSeq, r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 读取循环：处理心跳，连接断开时取消推送
	go g.readLoop(ctx, cancel, conn)

	if g.campaignEvents != nil {
		if g.streamEvents(ctx, conn, campaignID) {
			return
		}
		// 订阅失败，降级到轮询
		log.Printf("[ws.fallback.polling] campaign_id=%s", campaignID)
	}
	g.pollEvents(ctx, conn, campaignID, fromSeq)
}

// readLoop 消费客户端消息，应答心跳
func (g *EventGateway) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			if g.metrics != nil {
				g.metrics.RecordWSMessage("in", "ping")
			}
			if err := g.send(conn, &wsMessage{Type: "pong"}); err != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// streamEvents 事件总线模式
//
// 先订阅再回放历史，避免漏掉订阅建立前后的新事件。
// 返回 true 表示本连接已处理完毕（不需要轮询降级）。
func (g *EventGateway) streamEvents(ctx context.Context, conn *websocket.Conn, campaignID string) bool {
	ch, err := g.campaignEvents.SubscribeCampaignEvents(ctx, campaignID)
	if err != nil {
		log.Printf("[ws.subscribe.failed] campaign_id=%s error=%v", campaignID, err)
		return false
	}

	// 回放已有事件
	backlog, err := g.campaignEvents.GetCampaignEvents(ctx, campaignID, "0", eventBacklogLimit)
	if err != nil {
		log.Printf("[ws.backlog.failed] campaign_id=%s error=%v", campaignID, err)
	}
	for _, event := range backlog {
		if err := g.send(conn, &wsMessage{Type: "event", Data: event}); err != nil {
			return true
		}
	}

	// 活动已经结束时直接收尾
	if g.sendStatusIfTerminal(ctx, conn, campaignID) {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return true
		case event, ok := <-ch:
			if !ok {
				// 订阅通道被关闭（Redis 出错等），降级到轮询续命
				return false
			}
			if err := g.send(conn, &wsMessage{Type: "event", Data: event}); err != nil {
				return true
			}
			if isTerminalEvent(event.Type) {
				g.sendStatusIfTerminal(ctx, conn, campaignID)
				return true
			}
		}
	}
}

// pollEvents 轮询模式
//
// 以台账为事件源：按 fromSeq 起始偏移增量读取，
// 活动进入终止状态后发送 status 消息并关闭连接。
func (g *EventGateway) pollEvents(ctx context.Context, conn *websocket.Conn, campaignID string, fromSeq int) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	offset := fromSeq
	for {
		entries, err := g.store.ListHistoryByCampaign(ctx, campaignID, pollBatchSize, offset)
		if err != nil {
			log.Printf("[ws.poll.failed] campaign_id=%s error=%v", campaignID, err)
		}
		for _, entry := range entries {
			if err := g.send(conn, &wsMessage{Type: "event", Data: entry}); err != nil {
				return
			}
		}
		offset += len(entries)

		if g.sendStatusIfTerminal(ctx, conn, campaignID) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sendStatusIfTerminal 活动已终止时发送 status 消息，返回是否终止
func (g *EventGateway) sendStatusIfTerminal(ctx context.Context, conn *websocket.Conn, campaignID string) bool {
	campaign, err := g.store.GetCampaign(ctx, campaignID)
	if err != nil || campaign == nil {
		return false
	}
	if !campaign.Status.IsTerminal() {
		return false
	}

	g.send(conn, &wsMessage{Type: "status", Data: map[string]interface{}{
		"campaign_id": campaign.ID,
		"status":      string(campaign.Status),
	}})
	return true
}

// isTerminalEvent 判断事件类型是否标志活动终止
func isTerminalEvent(eventType string) bool {
	switch model.HistoryAction(eventType) {
	case model.HistoryActionCampaignCompleted,
		model.HistoryActionCampaignFailed,
		model.HistoryActionCampaignCancelled:
		return true
	}
	return false
}
