// Package eventbus 事件总线类型定义
package eventbus

import (
	"time"
)

// ============================================================================
// 事件类型
// ============================================================================

// CampaignEvent 活动事件
type CampaignEvent struct {
	ID         string                 `json:"id"`
	CampaignID string                 `json:"campaign_id"`
	MutationID string                 `json:"mutation_id,omitempty"`
	Type       string                 `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// ============================================================================
// Key 前缀和常量
// ============================================================================

const (
	// Key 前缀
	KeyCampaignEvents = "campaign_events:"

	// Stream 最大长度
	MaxStreamLength = 1000
)
