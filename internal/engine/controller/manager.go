package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/queue"
	"genome-engine/internal/shared/storage"
)

// ManagerConfig 管理器配置
type ManagerConfig struct {
	ConsumerID     string
	ReadCount      int64
	ReadTimeout    time.Duration
	FallbackEvery  time.Duration
	StaleThreshold time.Duration
}

// Validate 填充默认值
func (c *ManagerConfig) Validate() {
	if c.ConsumerID == "" {
		c.ConsumerID = "controller-default"
	}
	if c.ReadCount <= 0 {
		c.ReadCount = 10
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.FallbackEvery <= 0 {
		c.FallbackEvery = 5 * time.Minute
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 5 * time.Minute
	}
}

// Manager 执行管理器
//
// 管理器消费启动队列并为每个活动拾取 queued 执行：
//   - 主路径：Redis Streams 消费（实时、低延迟）
//   - 保底路径：数据库轮询（处理队列投递丢失的情况）
//
// 每个活动同一时刻至多一个本地执行在推进（per-campaign 执行锁），
// 取消请求通过注册表路由到在途执行。
type Manager struct {
	config     *ManagerConfig
	store      storage.PersistentStore
	runQueue   queue.CampaignRunQueue // 可为 nil，只用保底轮询
	controller *Controller

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	executions map[string]*Execution // campaignID → 在途执行
	wg         sync.WaitGroup        // 在途执行 goroutine
}

// NewManager 创建执行管理器
func NewManager(store storage.PersistentStore, runQueue queue.CampaignRunQueue, controller *Controller, config *ManagerConfig) *Manager {
	if config == nil {
		config = &ManagerConfig{}
	}
	config.Validate()

	return &Manager{
		config:     config,
		store:      store,
		runQueue:   runQueue,
		controller: controller,
		stopCh:     make(chan struct{}),
		executions: make(map[string]*Execution),
	}
}

// Start 启动管理器，阻塞直到 ctx 取消或 Stop
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	log.Printf("[manager.start] consumer_id=%s queue_enabled=%v fallback_every=%s",
		m.config.ConsumerID, m.runQueue != nil, m.config.FallbackEvery)

	var wg sync.WaitGroup

	// 主路径：队列消费
	if m.runQueue != nil {
		if err := m.runQueue.CreateEngineConsumerGroup(ctx); err != nil {
			log.Printf("[manager.redis.group.failed] error=%v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.consumeRunQueue(ctx)
		}()
	}

	// 保底路径：数据库轮询
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.fallbackPolling(ctx)
	}()

	wg.Wait()
	m.wg.Wait() // 等待在途执行收尾
	log.Printf("[manager.stopped] consumer_id=%s", m.config.ConsumerID)
}

// Stop 停止管理器
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		close(m.stopCh)
		m.running = false
	}
}

// consumeRunQueue 消费启动队列
func (m *Manager) consumeRunQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("[manager.redis.stop] reason=context_cancelled")
			return
		case <-m.stopCh:
			log.Printf("[manager.redis.stop] reason=stop_signal")
			return
		default:
		}

		messages, err := m.runQueue.ConsumeCampaignRuns(ctx, m.config.ConsumerID,
			m.config.ReadCount, m.config.ReadTimeout)
		if err != nil {
			log.Printf("[manager.redis.consume.failed] error=%v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		for _, msg := range messages {
			log.Printf("[manager.run.received] run_id=%s campaign_id=%s msg_id=%s source=redis",
				msg.RunID, msg.CampaignID, msg.ID)

			if err := m.processRun(ctx, msg.RunID); err != nil {
				log.Printf("[manager.run.failed] run_id=%s error=%v", msg.RunID, err)
				continue
			}

			if err := m.runQueue.AckCampaignRun(ctx, msg.ID); err != nil {
				log.Printf("[manager.redis.ack.failed] run_id=%s msg_id=%s error=%v", msg.RunID, msg.ID, err)
			}
		}
	}
}

// fallbackPolling 保底轮询
func (m *Manager) fallbackPolling(ctx context.Context) {
	// 启动时立即执行一次
	m.processStaleRuns(ctx)

	ticker := time.NewTicker(m.config.FallbackEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[manager.fallback.stop] reason=context_cancelled")
			return
		case <-m.stopCh:
			log.Printf("[manager.fallback.stop] reason=stop_signal")
			return
		case <-ticker.C:
			m.processStaleRuns(ctx)
		}
	}
}

// processStaleRuns 拾取滞留在 queued 的执行（队列投递丢失或实例重启）
func (m *Manager) processStaleRuns(ctx context.Context) {
	runs, err := m.store.ListStaleQueuedRuns(ctx, m.config.StaleThreshold)
	if err != nil {
		log.Printf("[manager.fallback.query.failed] error=%v", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	log.Printf("[manager.fallback.found] count=%d threshold=%s", len(runs), m.config.StaleThreshold)
	for _, run := range runs {
		if err := m.processRun(ctx, run.ID); err != nil {
			log.Printf("[manager.fallback.failed] run_id=%s error=%v", run.ID, err)
		}
	}
}

// processRun 拾取一个 queued 执行并启动控制器
//
// 同一活动已有在途执行时跳过（消息留给保底轮询稍后重试）。
func (m *Manager) processRun(ctx context.Context, runID string) error {
	run, err := m.store.GetCampaignRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		log.Printf("[manager.run.not_found] run_id=%s", runID)
		return nil
	}
	if run.Status != model.RunStatusQueued {
		log.Printf("[manager.run.skip] run_id=%s status=%s reason=not_queued", runID, run.Status)
		return nil
	}

	m.mu.Lock()
	if _, busy := m.executions[run.CampaignID]; busy {
		m.mu.Unlock()
		log.Printf("[manager.run.skip] run_id=%s campaign_id=%s reason=campaign_busy", runID, run.CampaignID)
		return nil
	}
	exec := m.controller.NewExecution(run.CampaignID, run.ID)
	m.executions[run.CampaignID] = exec
	m.wg.Add(1)
	m.mu.Unlock()

	// 注册表槽位已占住，此刻没有并发投影者：
	// 清掉上一次执行（崩溃重试）留下的过期事件流
	m.controller.recorder.PruneCampaignEvents(ctx, run.CampaignID)

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.executions, run.CampaignID)
			m.mu.Unlock()
		}()

		if err := exec.Run(ctx); err != nil {
			log.Printf("[manager.execution.error] run_id=%s campaign_id=%s error=%v", run.ID, run.CampaignID, err)
		}
	}()

	return nil
}

// CancelCampaign 取消活动
//
// 在途执行走注册表路由（让控制器按 drain/abandon 收尾并落终止状态）；
// 没有在途执行时直接落盘：pending/running 活动置 cancelled，
// queued/running 执行一并关闭。
func (m *Manager) CancelCampaign(ctx context.Context, campaignID string, mode model.CancellationMode) error {
	m.mu.Lock()
	exec, live := m.executions[campaignID]
	m.mu.Unlock()

	if live {
		exec.Cancel(mode)
		return nil
	}

	campaign, err := m.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return storage.ErrNotFound
	}
	if campaign.Status.IsTerminal() {
		return fmt.Errorf("campaign %s is already %s: %w", campaignID, campaign.Status, storage.ErrConflict)
	}

	if err := m.store.UpdateCampaignStatus(ctx, campaignID, model.CampaignStatusCancelled); err != nil {
		return err
	}

	runs, err := m.store.ListRunsByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	for _, run := range runs {
		switch run.Status {
		case model.RunStatusQueued, model.RunStatusRunning:
			results := &model.RunResults{Reason: "cancelled:" + string(mode)}
			if err := m.store.UpdateCampaignRunStatus(ctx, run.ID, model.RunStatusCancelled, results); err != nil {
				log.Printf("[manager.cancel.run.failed] run_id=%s error=%v", run.ID, err)
			}
		}
	}

	m.controller.recorder.RecordCampaign(ctx, campaignID, model.HistoryActionCampaignCancelled,
		map[string]interface{}{"mode": string(mode)})
	log.Printf("[manager.cancel] campaign_id=%s mode=%s live_execution=false", campaignID, mode)
	return nil
}

// StartCampaignRun 受理一次启动请求
//
// 以 queued 创建执行并派发到队列；队列不可用（nil 或写入失败）时
// 执行留在 queued，由保底轮询拾取。只允许从 pending 启动。
func (m *Manager) StartCampaignRun(ctx context.Context, campaignID string) (*model.CampaignRun, error) {
	campaign, err := m.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, storage.ErrNotFound
	}
	if campaign.Status != model.CampaignStatusPending {
		return nil, fmt.Errorf("campaign %s is %s, only pending campaigns can start: %w",
			campaignID, campaign.Status, storage.ErrConflict)
	}

	run := &model.CampaignRun{
		ID:         generateID("cr"),
		CampaignID: campaignID,
		Status:     model.RunStatusQueued,
	}
	if err := m.store.CreateCampaignRun(ctx, run); err != nil {
		return nil, err
	}

	if m.runQueue != nil {
		msgID, err := m.runQueue.ScheduleCampaignRun(ctx, run.ID, campaignID)
		if err != nil {
			// 执行留在 queued，保底轮询会拾取
			log.Printf("[manager.enqueue.failed] run_id=%s error=%v", run.ID, err)
		} else {
			log.Printf("[manager.enqueue.success] run_id=%s campaign_id=%s msg_id=%s", run.ID, campaignID, msgID)
		}
	}

	return run, nil
}
