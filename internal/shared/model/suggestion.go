// Package model 定义核心数据模型
//
// suggestion.go 包含改进建议相关的数据模型定义：
//   - Suggestion：顾问从历史活动结果中归纳出的前瞻性建议
//   - SuggestionStatus / SuggestionPriority：枚举
package model

import "time"

// ============================================================================
// 枚举
// ============================================================================

// SuggestionStatus 建议状态
//
// 建议由顾问写入，状态只在操作者审阅时迁移：new → accepted/dismissed。
// 除状态迁移外建议不可变。
type SuggestionStatus string

const (
	SuggestionStatusNew       SuggestionStatus = "new"
	SuggestionStatusAccepted  SuggestionStatus = "accepted"
	SuggestionStatusDismissed SuggestionStatus = "dismissed"
)

// SuggestionPriority 建议优先级
type SuggestionPriority string

const (
	SuggestionPriorityLow    SuggestionPriority = "low"
	SuggestionPriorityMedium SuggestionPriority = "medium"
	SuggestionPriorityHigh   SuggestionPriority = "high"
)

// 建议类型
const (
	// SuggestionTypeDisableMutationType 某变异类型长期零接受率，建议禁用
	SuggestionTypeDisableMutationType = "disable_mutation_type"

	// SuggestionTypeNearMiss 有变异的综合得分接近阈值，建议微调后重试
	SuggestionTypeNearMiss = "retry_near_miss"
)

// ============================================================================
// Suggestion - 改进建议
// ============================================================================

// Suggestion 表示顾问针对某基因组给出的改进建议
//
// 建议供操作者消费，活动控制器从不读取它。
// TemplatePatch 是可直接套用的变异模板（可选）。
type Suggestion struct {
	ID             string             `json:"id" db:"id"`
	GenomeID       string             `json:"genome_id" db:"genome_id"`
	SuggestionType string             `json:"suggestion_type" db:"suggestion_type"`
	Title          string             `json:"title" db:"title"`
	Description    string             `json:"description,omitempty" db:"description"`
	TemplatePatch  *string            `json:"template_patch,omitempty" db:"template_patch"`
	Confidence     float64            `json:"confidence" db:"confidence"`
	Priority       SuggestionPriority `json:"priority" db:"priority"`
	Status         SuggestionStatus   `json:"status" db:"status"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}
