// Package eventbus 事件总线抽象接口
//
// 提供事件的发布/订阅能力，当前由 Redis Streams 实现。
package eventbus

import (
	"context"
)

// ============================================================================
// 事件总线接口定义
// ============================================================================

// CampaignEventBus 活动事件总线接口
//
// 每个活动一条事件流，承载变异生命周期和活动状态变化的实时通知。
// 审计真相在 mutation_history 表里，这里只是在线投影。
type CampaignEventBus interface {
	PublishCampaignEvent(ctx context.Context, campaignID string, event *CampaignEvent) error
	GetCampaignEvents(ctx context.Context, campaignID string, fromID string, count int64) ([]*CampaignEvent, error)
	GetCampaignEventCount(ctx context.Context, campaignID string) (int64, error)
	SubscribeCampaignEvents(ctx context.Context, campaignID string) (<-chan *CampaignEvent, error)
	DeleteCampaignEvents(ctx context.Context, campaignID string) error
}

// ============================================================================
// 组合接口
// ============================================================================

// EventBus 事件总线组合接口
type EventBus interface {
	CampaignEventBus
	Close() error
}
