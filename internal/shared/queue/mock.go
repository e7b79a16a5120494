// Package queue 消息队列 mock 实现
package queue

import (
	"context"
	"time"
)

// ============================================================================
// NoOpQueue - 空操作的 Queue 实现（用于测试）
// ============================================================================

// NoOpQueue 是一个不做任何操作的 Queue 实现
type NoOpQueue struct{}

// NewNoOpQueue 创建 NoOpQueue 实例
func NewNoOpQueue() *NoOpQueue {
	return &NoOpQueue{}
}

// Close 关闭队列
func (q *NoOpQueue) Close() error {
	return nil
}

func (q *NoOpQueue) ScheduleCampaignRun(ctx context.Context, runID, campaignID string) (string, error) {
	return "", nil
}
func (q *NoOpQueue) CreateEngineConsumerGroup(ctx context.Context) error {
	return nil
}
func (q *NoOpQueue) ConsumeCampaignRuns(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*CampaignRunMessage, error) {
	return []*CampaignRunMessage{}, nil
}
func (q *NoOpQueue) AckCampaignRun(ctx context.Context, messageID string) error {
	return nil
}
func (q *NoOpQueue) GetCampaignQueueLength(ctx context.Context) (int64, error) {
	return 0, nil
}
func (q *NoOpQueue) GetCampaignPendingCount(ctx context.Context) (int64, error) {
	return 0, nil
}

// 确保 NoOpQueue 实现了 Queue 接口
var _ Queue = (*NoOpQueue)(nil)
