// Package model 定义核心数据模型
//
// history.go 包含审计台账相关的数据模型定义：
//   - HistoryEntry：一条只追加的审计记录
//   - HistoryAction：动作枚举
package model

import (
	"encoding/json"
	"time"
)

// ============================================================================
// HistoryAction - 审计动作
// ============================================================================

// HistoryAction 审计台账记录的动作类型
type HistoryAction string

const (
	// === 变异级动作 ===

	HistoryActionProposed   HistoryAction = "proposed"
	HistoryActionEvaluated  HistoryAction = "evaluated"
	HistoryActionScored     HistoryAction = "scored"
	HistoryActionAccepted   HistoryAction = "accepted"
	HistoryActionApplied    HistoryAction = "applied"
	HistoryActionRejected   HistoryAction = "rejected"
	HistoryActionFailed     HistoryAction = "failed"
	HistoryActionRolledBack HistoryAction = "rolled_back"

	// === 活动级动作（mutation_id 为空）===

	HistoryActionCampaignStarted   HistoryAction = "campaign_started"
	HistoryActionCampaignCompleted HistoryAction = "campaign_completed"
	HistoryActionCampaignFailed    HistoryAction = "campaign_failed"
	HistoryActionCampaignCancelled HistoryAction = "campaign_cancelled"
)

// ============================================================================
// HistoryEntry - 审计记录
// ============================================================================

// HistoryEntry 表示一条只追加的审计记录
//
// 台账契约：
//   - 只写一次，从不更新、从不删除
//   - 可按变异或活动查询，排序键为 (created_at, id)，分页稳定
//   - 每个负面结果（拒绝、失败、取消）都必须留下记录，不得静默吞掉
//
// 字段说明：
//   - ID：自增主键，亦作插入序号（同一时间戳内的稳定排序依据）
//   - Actor：执行者身份（系统组件名或操作者），由调用方显式传入
//   - Metadata：动作附加信息（拒绝原因、得分、错误文本等）
type HistoryEntry struct {
	ID         int64           `json:"id" db:"id"`
	MutationID *string         `json:"mutation_id,omitempty" db:"mutation_id"`
	CampaignID string          `json:"campaign_id" db:"campaign_id"`
	Action     HistoryAction   `json:"action" db:"action"`
	Actor      string          `json:"actor" db:"actor"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
