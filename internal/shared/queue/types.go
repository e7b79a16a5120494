// Package queue 消息队列类型定义
package queue

import (
	"time"
)

// ============================================================================
// 消息类型
// ============================================================================

// CampaignRunMessage 活动执行派发消息
type CampaignRunMessage struct {
	ID         string
	RunID      string
	CampaignID string
	CreatedAt  time.Time
}

// ============================================================================
// Key 前缀和常量
// ============================================================================

const (
	// 引擎派发队列 - 存放待拾取的活动执行
	KeyEngineRuns = "engine:runs"

	// 消费者组
	EngineConsumerGroup = "engine_controllers"
)
