// Package model 定义核心数据模型
//
// mutation.go 包含变异相关的数据模型定义：
//   - Mutation：一次候选变更（提出 → 评估 → 打分 → 应用/拒绝）
//   - MutationStatus：变异状态枚举
//   - MutationTest：一次评估结果
package model

import (
	"encoding/json"
	"time"
)

// ============================================================================
// MutationStatus - 变异状态
// ============================================================================

// MutationStatus 表示变异的处理状态
//
// 状态机：
//
//	proposed → testing → scored → applied/rejected
//	             └→ failed（评估器错误，非测试失败）
//
// 不变式：
//   - 得分只在评估完成后填充
//   - applied_at 当且仅当 status = applied 时非空
//   - applied 之后变异不可变；重新评估创建新记录，从不修改旧记录
type MutationStatus string

const (
	// MutationStatusProposed 已提出：生成器产出，等待评估
	MutationStatusProposed MutationStatus = "proposed"

	// MutationStatusTesting 评估中：已派发给评估器
	MutationStatusTesting MutationStatus = "testing"

	// MutationStatusScored 已打分：评估完成，得分已持久化
	MutationStatusScored MutationStatus = "scored"

	// MutationStatusApplied 已应用：通过接受策略，已换入基因组
	MutationStatusApplied MutationStatus = "applied"

	// MutationStatusRejected 已拒绝：得分不达标，或被兄弟变异取代
	MutationStatusRejected MutationStatus = "rejected"

	// MutationStatusFailed 已失败：评估器永久错误（区别于测试失败）
	MutationStatusFailed MutationStatus = "failed"
)

// IsTerminal 判断变异是否处于终止状态
func (s MutationStatus) IsTerminal() bool {
	switch s {
	case MutationStatusApplied, MutationStatusRejected, MutationStatusFailed:
		return true
	default:
		return false
	}
}

// ============================================================================
// Mutation - 候选变更
// ============================================================================

// Mutation 表示活动内针对基因组提出的一次候选变更
//
// 字段说明：
//   - Sequence：批内单调递增序号，保证固定种子下评估顺序可复现；
//     打分与接受决策严格按 Sequence 升序进行，与评估完成顺序无关
//   - OriginalCode/MutatedCode：变更前后的工件负载
//   - Diff：original → mutated 的统一 diff 渲染（便于人工审阅）
//   - MetricsBefore/MetricsAfter：评估前后的指标快照
//   - SafetyScore/ConfidenceScore/CompositeScore：归一化到 [0.0, 1.0]
type Mutation struct {
	ID           string         `json:"id" db:"id"`
	CampaignID   string         `json:"campaign_id" db:"campaign_id"`
	GenomeID     string         `json:"genome_id" db:"genome_id"`
	Sequence     int            `json:"sequence" db:"sequence"`
	MutationType string         `json:"mutation_type" db:"mutation_type"`
	OriginalCode string         `json:"original_code,omitempty" db:"original_code"`
	MutatedCode  string         `json:"mutated_code,omitempty" db:"mutated_code"`
	Diff         string         `json:"diff,omitempty" db:"diff"`
	Description  string         `json:"description,omitempty" db:"description"`
	Explain      string         `json:"explain,omitempty" db:"explanation"`
	Status       MutationStatus `json:"status" db:"status"`

	MetricsBefore *MetricsSnapshot `json:"metrics_before,omitempty" db:"metrics_before"`
	MetricsAfter  *MetricsSnapshot `json:"metrics_after,omitempty" db:"metrics_after"`

	SafetyScore     *float64 `json:"safety_score,omitempty" db:"safety_score"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty" db:"confidence_score"`
	CompositeScore  *float64 `json:"composite_score,omitempty" db:"composite_score"`

	AppliedAt *time.Time `json:"applied_at,omitempty" db:"applied_at"`
	AppliedBy *string    `json:"applied_by,omitempty" db:"applied_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsScored 判断得分是否已填充
func (m *Mutation) IsScored() bool {
	return m.SafetyScore != nil && m.ConfidenceScore != nil && m.CompositeScore != nil
}

// ============================================================================
// MutationTest - 评估结果
// ============================================================================

// MutationTest 表示对一个变异的一次评估结果
//
// 同一变异可以累计多条测试记录（如重试评估）；
// 打分器按配置使用最近一条或全量聚合。
type MutationTest struct {
	ID             string          `json:"id" db:"id"`
	MutationID     string          `json:"mutation_id" db:"mutation_id"`
	PassRate       float64         `json:"pass_rate" db:"pass_rate"`
	LatencyMS      float64         `json:"latency_ms" db:"latency_ms"`
	CPUUsage       float64         `json:"cpu_usage" db:"cpu_usage"`
	MemoryUsage    float64         `json:"memory_usage" db:"memory_usage"`
	CostPerRequest float64         `json:"cost_per_request" db:"cost_per_request"`
	TestResults    json.RawMessage `json:"test_results,omitempty" db:"test_results"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
