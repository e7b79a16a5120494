// Package server WebSocket 事件网关单元测试
//
// 本文件测试 EventGateway 的核心功能：
//
// # 测试分组
//
// ## 构造与初始化
//   - TestNewEventGateway: 验证网关创建、字段初始化
//   - TestNewEventGateway_NilEventBus: 验证无事件总线时的降级行为
//
// ## 客户端连接管理
//   - TestAddRemoveClient: 添加/移除单个客户端
//   - TestAddRemoveClient_MultipleClients: 同一 CampaignID 多客户端管理
//   - TestAddRemoveClient_MultipleCampaigns: 多个 CampaignID 独立管理
//   - TestClientCount: 并发安全的客户端计数
//
// ## 广播
//   - TestBroadcast: 向指定活动的所有客户端广播消息
//   - TestBroadcast_NoClients: 无客户端时广播不 panic
//   - TestBroadcast_IsolatedByCampaignID: 不同 CampaignID 互不影响
//
// ## WebSocket 集成（使用 httptest + gorilla/websocket）
//   - TestHandleWebSocket_PollingMode: 无事件总线时轮询模式
//   - TestHandleWebSocket_EventBusMode: 有事件总线时的事件驱动模式
//   - TestHandleWebSocket_MissingCampaignID: 缺少活动 ID 返回 400
//   - TestHandleWebSocket_PingPong: 心跳消息处理
//
// # 使用的 Mock
//   - mockEventStore: 实现 eventStore 接口（GetCampaign, ListHistoryByCampaign）
//   - mockCampaignEventBus: 实现 eventbus.CampaignEventBus 接口
//
// # 运行方式
//
//	go test -v -run TestNewEventGateway ./internal/apiserver/server/
//	go test -v -run TestBroadcast ./internal/apiserver/server/
//	go test -v -run TestHandleWebSocket ./internal/apiserver/server/
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"genome-engine/internal/shared/eventbus"
	"genome-engine/internal/shared/model"
)

// ============================================================================
// Mock 实现
// ============================================================================

// mockEventStore 模拟 eventStore 接口
//
// 可通过设置字段控制返回值：
//   - Entries: ListHistoryByCampaign 返回的台账记录
//   - Campaign: GetCampaign 返回的活动对象
//   - Err: 所有方法返回的错误
//
// SetCampaignStatus 可在测试中途切换活动状态（模拟活动结束）。
type mockEventStore struct {
	Entries  []*model.HistoryEntry
	Campaign *model.Campaign
	Err      error

	// 调用记录
	ListHistoryCalls []listHistoryCall
	mu               sync.Mutex
}

type listHistoryCall struct {
	CampaignID string
	Limit      int
	Offset     int
}

func (m *mockEventStore) GetCampaign(_ context.Context, id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Campaign, m.Err
}

func (m *mockEventStore) ListHistoryByCampaign(_ context.Context, campaignID string, limit, offset int) ([]*model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListHistoryCalls = append(m.ListHistoryCalls, listHistoryCall{campaignID, limit, offset})
	if offset >= len(m.Entries) {
		return nil, m.Err
	}
	return m.Entries[offset:], m.Err
}

func (m *mockEventStore) SetCampaignStatus(status model.CampaignStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Campaign.Status = status
}

// mockCampaignEventBus 模拟 CampaignEventBus 接口
//
// 可通过 EventCh 字段控制 SubscribeCampaignEvents 返回的通道。
// 如果 SubscribeErr 非 nil，SubscribeCampaignEvents 返回错误。
type mockCampaignEventBus struct {
	EventCh      chan *eventbus.CampaignEvent
	Backlog      []*eventbus.CampaignEvent
	SubscribeErr error
}

func (m *mockCampaignEventBus) PublishCampaignEvent(_ context.Context, _ string, _ *eventbus.CampaignEvent) error {
	return nil
}

func (m *mockCampaignEventBus) GetCampaignEvents(_ context.Context, _ string, _ string, _ int64) ([]*eventbus.CampaignEvent, error) {
	return m.Backlog, nil
}

func (m *mockCampaignEventBus) GetCampaignEventCount(_ context.Context, _ string) (int64, error) {
	return int64(len(m.Backlog)), nil
}

func (m *mockCampaignEventBus) SubscribeCampaignEvents(_ context.Context, _ string) (<-chan *eventbus.CampaignEvent, error) {
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	return m.EventCh, nil
}

func (m *mockCampaignEventBus) DeleteCampaignEvents(_ context.Context, _ string) error {
	return nil
}

// ============================================================================
// 构造与初始化测试
// ============================================================================

// TestNewEventGateway 验证网关正确初始化
//
// 检查点：
//   - store 和 campaignEvents 正确注入
//   - clients map 已初始化（非 nil）
func TestNewEventGateway(t *testing.T) {
	store := &mockEventStore{}
	bus := &mockCampaignEventBus{}

	gw := NewEventGateway(store, bus)

	if gw == nil {
		t.Fatal("NewEventGateway returned nil")
	}
	if gw.store != store {
		t.Error("store not set correctly")
	}
	if gw.campaignEvents != bus {
		t.Error("campaignEvents not set correctly")
	}
	if gw.clients == nil {
		t.Error("clients map should be initialized")
	}
	if len(gw.clients) != 0 {
		t.Errorf("clients map should be empty, got %d", len(gw.clients))
	}
}

// TestNewEventGateway_NilEventBus 验证无事件总线时也能正常创建
//
// 当 campaignEvents 为 nil 时，HandleWebSocket 会降级到轮询模式。
func TestNewEventGateway_NilEventBus(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)

	if gw == nil {
		t.Fatal("NewEventGateway returned nil with nil eventbus")
	}
	if gw.campaignEvents != nil {
		t.Error("campaignEvents should be nil")
	}
}

// ============================================================================
// 客户端连接管理测试
// ============================================================================

// TestAddRemoveClient 测试添加和移除单个客户端
//
// 验证：
//   - addClient 后客户端存在于 clients map 中
//   - removeClient 后客户端被移除
//   - 最后一个客户端移除后 CampaignID 条目被清理
func TestAddRemoveClient(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)
	conn := &websocket.Conn{} // 用作 map key，不需要真实连接

	// 添加
	gw.addClient("camp-1", conn)

	gw.mu.RLock()
	if len(gw.clients["camp-1"]) != 1 {
		t.Errorf("expected 1 client, got %d", len(gw.clients["camp-1"]))
	}
	if !gw.clients["camp-1"][conn] {
		t.Error("conn should be in clients map")
	}
	gw.mu.RUnlock()

	// 移除
	gw.removeClient("camp-1", conn)

	gw.mu.RLock()
	if _, ok := gw.clients["camp-1"]; ok {
		t.Error("camp-1 entry should be cleaned up after last client removed")
	}
	gw.mu.RUnlock()
}

// TestAddRemoveClient_MultipleClients 同一 CampaignID 多客户端
//
// 验证：
//   - 同一 CampaignID 可以有多个客户端
//   - 移除一个不影响其他
func TestAddRemoveClient_MultipleClients(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	gw.addClient("camp-1", conn1)
	gw.addClient("camp-1", conn2)

	gw.mu.RLock()
	if len(gw.clients["camp-1"]) != 2 {
		t.Errorf("expected 2 clients, got %d", len(gw.clients["camp-1"]))
	}
	gw.mu.RUnlock()

	// 移除 conn1
	gw.removeClient("camp-1", conn1)

	gw.mu.RLock()
	if len(gw.clients["camp-1"]) != 1 {
		t.Errorf("expected 1 client after removal, got %d", len(gw.clients["camp-1"]))
	}
	if !gw.clients["camp-1"][conn2] {
		t.Error("conn2 should still exist")
	}
	gw.mu.RUnlock()
}

// TestAddRemoveClient_MultipleCampaigns 多个 CampaignID 独立管理
//
// 验证不同 CampaignID 的客户端互不影响。
func TestAddRemoveClient_MultipleCampaigns(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	gw.addClient("camp-1", conn1)
	gw.addClient("camp-2", conn2)

	gw.mu.RLock()
	if len(gw.clients) != 2 {
		t.Errorf("expected 2 campaign entries, got %d", len(gw.clients))
	}
	gw.mu.RUnlock()

	// 移除 camp-1 不影响 camp-2
	gw.removeClient("camp-1", conn1)

	gw.mu.RLock()
	if _, ok := gw.clients["camp-1"]; ok {
		t.Error("camp-1 should be cleaned up")
	}
	if len(gw.clients["camp-2"]) != 1 {
		t.Error("camp-2 should still have 1 client")
	}
	gw.mu.RUnlock()
}

// TestRemoveClient_NonExistentCampaign 移除不存在的 CampaignID 不 panic
func TestRemoveClient_NonExistentCampaign(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)
	conn := &websocket.Conn{}

	// 不应 panic
	gw.removeClient("non-existent", conn)
}

// TestClientCount 验证并发安全的客户端操作
//
// 在多个 goroutine 中同时添加/移除客户端，验证最终状态一致。
func TestClientCount(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)

	var wg sync.WaitGroup
	conns := make([]*websocket.Conn, 100)
	for i := range conns {
		conns[i] = &websocket.Conn{}
	}

	// 并发添加
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			gw.addClient("camp-concurrent", conns[idx])
		}(i)
	}
	wg.Wait()

	gw.mu.RLock()
	if len(gw.clients["camp-concurrent"]) != 100 {
		t.Errorf("expected 100 clients, got %d", len(gw.clients["camp-concurrent"]))
	}
	gw.mu.RUnlock()

	// 并发移除
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			gw.removeClient("camp-concurrent", conns[idx])
		}(i)
	}
	wg.Wait()

	gw.mu.RLock()
	if _, ok := gw.clients["camp-concurrent"]; ok {
		t.Error("camp-concurrent entry should be cleaned up")
	}
	gw.mu.RUnlock()
}

// ============================================================================
// 广播测试
// ============================================================================

// TestBroadcast 向指定活动的所有客户端广播消息
//
// 使用 httptest.Server + WebSocket 客户端验证实际消息传递。
func TestBroadcast(t *testing.T) {
	store := &mockEventStore{
		// 活动处于 running 状态，不会触发 status 消息退出
		Campaign: &model.Campaign{ID: "camp-1", Status: model.CampaignStatusRunning},
	}
	gw := NewEventGateway(store, nil)

	// 启动 WebSocket 测试服务器
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		gw.addClient("camp-1", conn)
		defer gw.removeClient("camp-1", conn)

		// 保持连接直到服务器关闭
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	// 连接 WebSocket 客户端
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	// 等待连接建立
	time.Sleep(50 * time.Millisecond)

	// 广播消息
	testEvent := map[string]interface{}{
		"mutation_id": "mut-1",
		"type":        "scored",
	}
	gw.Broadcast("camp-1", testEvent)

	// 读取消息
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	var received map[string]interface{}
	if err := json.Unmarshal(msg, &received); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if received["type"] != "event" {
		t.Errorf("message type = %v, want 'event'", received["type"])
	}
	data, ok := received["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data should be a map")
	}
	if data["type"] != "scored" {
		t.Errorf("event type = %v, want 'scored'", data["type"])
	}
}

// TestBroadcast_NoClients 无客户端时广播不 panic
func TestBroadcast_NoClients(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)

	// 不应 panic
	gw.Broadcast("non-existent-campaign", map[string]string{"type": "test"})
}

// TestBroadcast_IsolatedByCampaignID 不同 CampaignID 的广播互不影响
//
// 验证：向 camp-1 广播时，camp-2 的客户端不会收到消息。
func TestBroadcast_IsolatedByCampaignID(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)

	// 服务端：根据查询参数将连接注册到不同 CampaignID
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		campaignID := r.URL.Query().Get("campaign_id")
		gw.addClient(campaignID, conn)
		defer gw.removeClient(campaignID, conn)

		// 保持连接打开
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// 连接 camp-1 和 camp-2
	c1, _, err := websocket.DefaultDialer.Dial(wsURL+"?campaign_id=camp-1", nil)
	if err != nil {
		t.Fatalf("dial camp-1 error: %v", err)
	}
	defer c1.Close()

	c2, _, err := websocket.DefaultDialer.Dial(wsURL+"?campaign_id=camp-2", nil)
	if err != nil {
		t.Fatalf("dial camp-2 error: %v", err)
	}
	defer c2.Close()

	// 等待连接注册完成
	time.Sleep(50 * time.Millisecond)

	// 只广播到 camp-1
	gw.Broadcast("camp-1", map[string]string{"type": "test"})

	// camp-1 客户端应收到消息
	c1.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := c1.ReadMessage()
	if err != nil {
		t.Fatalf("camp-1 read error: %v", err)
	}
	var received map[string]interface{}
	json.Unmarshal(msg, &received)
	if received["type"] != "event" {
		t.Errorf("camp-1 message type = %v, want 'event'", received["type"])
	}

	// camp-2 客户端不应收到消息（短超时验证）
	c2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = c2.ReadMessage()
	if err == nil {
		t.Error("camp-2 should NOT receive camp-1's broadcast")
	}
	// 超时错误是预期的
}

// ============================================================================
// WebSocket 集成测试
// ============================================================================

// TestHandleWebSocket_MissingCampaignID 缺少活动 ID 返回 400
func TestHandleWebSocket_MissingCampaignID(t *testing.T) {
	gw := NewEventGateway(&mockEventStore{}, nil)

	req := httptest.NewRequest("GET", "/ws/campaigns//events", nil)
	w := httptest.NewRecorder()

	gw.HandleWebSocket(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestHandleWebSocket_PollingMode 无事件总线时使用轮询模式
//
// 验证：
//   - 台账记录以事件消息推送
//   - 活动终止后发送 status 消息并关闭连接
func TestHandleWebSocket_PollingMode(t *testing.T) {
	mutID := "mut-1"
	store := &mockEventStore{
		Entries: []*model.HistoryEntry{
			{ID: 1, CampaignID: "camp-1", MutationID: &mutID, Action: model.HistoryActionProposed, Actor: "engine", CreatedAt: time.Now()},
		},
		Campaign: &model.Campaign{ID: "camp-1", Status: model.CampaignStatusCompleted},
	}

	// 无事件总线 → 轮询模式
	gw := NewEventGateway(store, nil)

	// 使用 Go 1.22 路由模式设置 PathValue
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/campaigns/{id}/events", gw.HandleWebSocket)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/campaigns/camp-1/events"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	// 读取消息（轮询间隔 500ms，应在 2s 内收到事件+状态）
	var messages []map[string]interface{}
	client.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := client.ReadMessage()
		if err != nil {
			break
		}
		var m map[string]interface{}
		json.Unmarshal(msg, &m)
		messages = append(messages, m)

		// 收到 status 消息后退出
		if m["type"] == "status" {
			break
		}
	}

	if len(messages) < 2 {
		t.Fatalf("expected at least 2 messages (event + status), got %d", len(messages))
	}

	// 验证第一条消息是事件
	if messages[0]["type"] != "event" {
		t.Errorf("first message type = %v, want 'event'", messages[0]["type"])
	}

	// 验证最后一条消息是状态
	lastMsg := messages[len(messages)-1]
	if lastMsg["type"] != "status" {
		t.Errorf("last message type = %v, want 'status'", lastMsg["type"])
	}
	statusData, _ := lastMsg["data"].(map[string]interface{})
	if statusData["status"] != "completed" {
		t.Errorf("status = %v, want 'completed'", statusData["status"])
	}
}

// TestHandleWebSocket_EventBusMode 有事件总线时使用事件驱动模式
//
// 验证：
//   - 事件通过 CampaignEventBus 通道推送
//   - 活动终止事件触发 status 消息
func TestHandleWebSocket_EventBusMode(t *testing.T) {
	store := &mockEventStore{
		Campaign: &model.Campaign{ID: "camp-1", Status: model.CampaignStatusRunning},
	}

	eventCh := make(chan *eventbus.CampaignEvent, 10)
	bus := &mockCampaignEventBus{EventCh: eventCh}

	gw := NewEventGateway(store, bus)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/campaigns/{id}/events", gw.HandleWebSocket)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/campaigns/camp-1/events"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	// 等待连接建立和订阅完成
	time.Sleep(100 * time.Millisecond)

	// 通过事件总线推送事件
	eventCh <- &eventbus.CampaignEvent{
		ID:         "1-0",
		CampaignID: "camp-1",
		MutationID: "mut-1",
		Type:       "scored",
		Timestamp:  time.Now(),
		Data:       map[string]interface{}{"composite_score": 0.9},
	}

	// 读取消息
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	var received map[string]interface{}
	json.Unmarshal(msg, &received)

	if received["type"] != "event" {
		t.Errorf("message type = %v, want 'event'", received["type"])
	}

	// 活动结束：状态切换后推送终止事件
	store.SetCampaignStatus(model.CampaignStatusCompleted)
	eventCh <- &eventbus.CampaignEvent{
		ID:         "2-0",
		CampaignID: "camp-1",
		Type:       "campaign_completed",
	}

	// 应收到事件 + 状态消息
	var gotStatus bool
	for i := 0; i < 3; i++ {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err = client.ReadMessage()
		if err != nil {
			break
		}
		var m map[string]interface{}
		json.Unmarshal(msg, &m)
		if m["type"] == "status" {
			gotStatus = true
			break
		}
	}

	if !gotStatus {
		t.Error("expected status message after campaign_completed event")
	}
}

// TestHandleWebSocket_EventBusSubscribeFail 事件总线订阅失败时降级到轮询
func TestHandleWebSocket_EventBusSubscribeFail(t *testing.T) {
	mutID := "mut-1"
	store := &mockEventStore{
		Entries: []*model.HistoryEntry{
			{ID: 1, CampaignID: "camp-1", MutationID: &mutID, Action: model.HistoryActionApplied, Actor: "engine", CreatedAt: time.Now()},
		},
		Campaign: &model.Campaign{ID: "camp-1", Status: model.CampaignStatusCompleted},
	}

	bus := &mockCampaignEventBus{
		SubscribeErr: context.DeadlineExceeded,
	}
	gw := NewEventGateway(store, bus)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/campaigns/{id}/events", gw.HandleWebSocket)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/campaigns/camp-1/events"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	// 应降级到轮询模式并最终收到 status completed
	var gotStatus bool
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := client.ReadMessage()
		if err != nil {
			break
		}
		var m map[string]interface{}
		json.Unmarshal(msg, &m)
		if m["type"] == "status" {
			gotStatus = true
			break
		}
	}

	if !gotStatus {
		t.Error("expected status message from polling fallback")
	}
}

// TestHandleWebSocket_FromSeq 断线重连恢复参数
func TestHandleWebSocket_FromSeq(t *testing.T) {
	store := &mockEventStore{
		Campaign: &model.Campaign{ID: "camp-1", Status: model.CampaignStatusCompleted},
	}

	gw := NewEventGateway(store, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/campaigns/{id}/events", gw.HandleWebSocket)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/campaigns/camp-1/events?from_seq=5"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	// 等待轮询执行至少一次
	time.Sleep(600 * time.Millisecond)

	// 验证 store 被调用时传入了 offset=5
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.ListHistoryCalls) == 0 {
		t.Fatal("ListHistoryByCampaign should have been called")
	}
	// 第一次调用的 offset 应该是 5
	if store.ListHistoryCalls[0].Offset != 5 {
		t.Errorf("offset = %d, want 5", store.ListHistoryCalls[0].Offset)
	}
}

// TestHandleWebSocket_PingPong 心跳消息处理
func TestHandleWebSocket_PingPong(t *testing.T) {
	store := &mockEventStore{
		Campaign: &model.Campaign{ID: "camp-1", Status: model.CampaignStatusRunning},
	}
	gw := NewEventGateway(store, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/campaigns/{id}/events", gw.HandleWebSocket)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/campaigns/camp-1/events"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer client.Close()

	// 发送心跳
	if err := client.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	// 活动未终止且无台账记录，收到的第一条消息应是 pong
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	var received map[string]interface{}
	json.Unmarshal(msg, &received)
	if received["type"] != "pong" {
		t.Errorf("message type = %v, want 'pong'", received["type"])
	}
}
