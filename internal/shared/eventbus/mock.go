// Package eventbus 事件总线 mock 实现
package eventbus

import (
	"context"
)

// ============================================================================
// NoOpEventBus - 空操作的 EventBus 实现（用于测试）
// ============================================================================

// NoOpEventBus 是一个不做任何操作的 EventBus 实现
type NoOpEventBus struct{}

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

// Close 关闭事件总线
func (e *NoOpEventBus) Close() error {
	return nil
}

func (e *NoOpEventBus) PublishCampaignEvent(ctx context.Context, campaignID string, event *CampaignEvent) error {
	return nil
}
func (e *NoOpEventBus) GetCampaignEvents(ctx context.Context, campaignID string, fromID string, count int64) ([]*CampaignEvent, error) {
	return []*CampaignEvent{}, nil
}
func (e *NoOpEventBus) GetCampaignEventCount(ctx context.Context, campaignID string) (int64, error) {
	return 0, nil
}
func (e *NoOpEventBus) SubscribeCampaignEvents(ctx context.Context, campaignID string) (<-chan *CampaignEvent, error) {
	ch := make(chan *CampaignEvent)
	close(ch)
	return ch, nil
}
func (e *NoOpEventBus) DeleteCampaignEvents(ctx context.Context, campaignID string) error {
	return nil
}

// 确保 NoOpEventBus 实现了 EventBus 接口
var _ EventBus = (*NoOpEventBus)(nil)
