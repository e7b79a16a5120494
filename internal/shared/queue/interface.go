// Package queue 消息队列抽象接口
//
// 提供活动执行派发和消费的队列能力，当前由 Redis Streams 实现。
package queue

import (
	"context"
	"time"
)

// ============================================================================
// 队列接口定义
// ============================================================================

// CampaignRunQueue 活动执行派发队列接口
type CampaignRunQueue interface {
	// ScheduleCampaignRun 将执行加入派发队列（等待控制器拾取）
	ScheduleCampaignRun(ctx context.Context, runID, campaignID string) (string, error)
	CreateEngineConsumerGroup(ctx context.Context) error
	ConsumeCampaignRuns(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*CampaignRunMessage, error)
	AckCampaignRun(ctx context.Context, messageID string) error
	GetCampaignQueueLength(ctx context.Context) (int64, error)
	GetCampaignPendingCount(ctx context.Context) (int64, error)
}

// ============================================================================
// 组合接口
// ============================================================================

// Queue 消息队列组合接口
type Queue interface {
	CampaignRunQueue
	Close() error
}
