// Package model 定义核心数据模型
//
// campaign.go 包含优化活动相关的数据模型定义：
//   - Campaign：优化活动（定义"优化什么"）
//   - CampaignRun：活动的单次执行实例（记录"一次尝试"）
//   - CampaignConfiguration：活动配置（搜索/评估参数）
//   - CampaignStatus / RunStatus：状态枚举
//
// 术语规范：
//   - Campaign = 活动（针对一个基因组、一个目标指标的有界优化）
//   - CampaignRun = 执行（同一活动定义可以多次重跑）
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ============================================================================
// CampaignStatus - 活动状态
// ============================================================================

// CampaignStatus 表示活动的整体状态
//
// 状态机：pending → running → completed/failed/cancelled
// 终止状态是吸收态，不再迁移。
type CampaignStatus string

const (
	// CampaignStatusPending 待启动：活动已创建，等待首次执行
	CampaignStatusPending CampaignStatus = "pending"

	// CampaignStatusRunning 执行中
	CampaignStatusRunning CampaignStatus = "running"

	// CampaignStatusCompleted 已完成：变异预算耗尽，正常结束
	CampaignStatusCompleted CampaignStatus = "completed"

	// CampaignStatusFailed 已失败：集成不可用超过重试上限，或整体超时
	CampaignStatusFailed CampaignStatus = "failed"

	// CampaignStatusCancelled 已取消：外部显式取消
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// IsTerminal 判断活动是否处于终止状态
func (s CampaignStatus) IsTerminal() bool {
	switch s {
	case CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// ============================================================================
// RunStatus - 执行状态
// ============================================================================

// RunStatus 表示单次执行（CampaignRun）的状态
//
// queued → running → completed/failed/cancelled
// queued 表示执行已派发到队列但尚未被控制器拾取。
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// ============================================================================
// CancellationMode - 取消模式
// ============================================================================

// CancellationMode 取消时对在途评估的处理方式
type CancellationMode string

const (
	// CancelDrain 排空：已派发的评估允许完成，结果仍被打分/应用
	CancelDrain CancellationMode = "drain"

	// CancelAbandon 放弃：取消时间点之后返回的评估结果被丢弃
	CancelAbandon CancellationMode = "abandon"
)

// ============================================================================
// ScoreWeights - 综合得分权重
// ============================================================================

// ScoreWeights 综合得分的加权配置，三项之和必须为 1.0
type ScoreWeights struct {
	Safety      float64 `json:"safety"`
	Confidence  float64 `json:"confidence"`
	Improvement float64 `json:"improvement"`
}

// weightSumTolerance 权重和校验容差
const weightSumTolerance = 1e-9

// ============================================================================
// CampaignConfiguration - 活动配置
// ============================================================================

// ConfigurationSchemaVersion 当前活动配置结构版本
const ConfigurationSchemaVersion = 1

// CampaignConfiguration 活动的搜索与评估参数
//
// 原始系统将其存储为无类型 JSON；这里提升为带版本号的窄结构，
// 在活动进入 running 之前完成校验（权重和、目标指标合法性等）。
type CampaignConfiguration struct {
	// SchemaVersion 结构版本号
	SchemaVersion int `json:"schema_version"`

	// BatchSize 每批向生成器请求的候选变异数
	BatchSize int `json:"batch_size"`

	// MutationBudget 活动的变异总预算（0 也是合法的，活动直接完成）
	MutationBudget int `json:"mutation_budget"`

	// MaxConcurrentEvaluations 并行评估上限
	MaxConcurrentEvaluations int `json:"max_concurrent_evaluations"`

	// SafetyFloor 接受阈值：安全得分下限
	SafetyFloor float64 `json:"safety_floor"`

	// MinImprovement 接受阈值：综合得分相对基线的最小提升
	MinImprovement float64 `json:"min_improvement"`

	// Weights 综合得分权重，和必须为 1.0
	Weights ScoreWeights `json:"weights"`

	// SafetyMetrics 安全相关子指标（回归时压低安全得分）
	SafetyMetrics []string `json:"safety_metrics,omitempty"`

	// MaxRetries 评估器瞬态错误的重试上限
	MaxRetries int `json:"max_retries"`

	// ApplyMaxRetries 基因组 CAS 换入失败的重试上限
	ApplyMaxRetries int `json:"apply_max_retries"`

	// CancellationMode 取消模式（drain/abandon）
	CancellationMode CancellationMode `json:"cancellation_mode"`

	// EvaluationTimeoutSec 单次评估超时（秒），0 表示不限
	EvaluationTimeoutSec int `json:"evaluation_timeout_sec"`

	// CampaignTimeoutSec 活动整体墙钟超时（秒），0 表示不限
	CampaignTimeoutSec int `json:"campaign_timeout_sec"`

	// Seed 传递给生成器的随机种子，保证评估顺序可复现
	Seed int64 `json:"seed"`

	// UseAggregateTests 打分时聚合全部测试记录（默认只用最近一条）
	UseAggregateTests bool `json:"use_aggregate_tests"`
}

// DefaultConfiguration 返回默认活动配置
func DefaultConfiguration() CampaignConfiguration {
	return CampaignConfiguration{
		SchemaVersion:            ConfigurationSchemaVersion,
		BatchSize:                5,
		MutationBudget:           20,
		MaxConcurrentEvaluations: 4,
		SafetyFloor:              0.8,
		MinImprovement:           0.05,
		Weights:                  ScoreWeights{Safety: 0.3, Confidence: 0.2, Improvement: 0.5},
		SafetyMetrics:            []string{MetricErrorRate},
		MaxRetries:               3,
		ApplyMaxRetries:          3,
		CancellationMode:         CancelDrain,
	}
}

// ValidationError 活动配置校验失败
//
// 在活动开始运行之前拒绝非法配置（权重和不为 1.0、未知目标指标等）。
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid campaign configuration: " + strings.Join(e.Problems, "; ")
}

// Validate 校验活动配置与目标指标
//
// 返回 nil 或包含全部问题的 *ValidationError。
func (c *CampaignConfiguration) Validate(targetMetric string) error {
	var problems []string

	if !IsKnownMetric(targetMetric) {
		problems = append(problems, fmt.Sprintf("unknown target metric %q", targetMetric))
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "batch_size must be positive")
	}
	if c.MutationBudget < 0 {
		problems = append(problems, "mutation_budget must not be negative")
	}
	if c.MaxConcurrentEvaluations <= 0 {
		problems = append(problems, "max_concurrent_evaluations must be positive")
	}
	if c.SafetyFloor < 0 || c.SafetyFloor > 1 {
		problems = append(problems, "safety_floor must be within [0, 1]")
	}
	if c.MinImprovement < 0 {
		problems = append(problems, "min_improvement must not be negative")
	}

	sum := c.Weights.Safety + c.Weights.Confidence + c.Weights.Improvement
	if math.Abs(sum-1.0) > weightSumTolerance {
		problems = append(problems, fmt.Sprintf("score weights must sum to 1.0, got %g", sum))
	}
	if c.Weights.Safety < 0 || c.Weights.Confidence < 0 || c.Weights.Improvement < 0 {
		problems = append(problems, "score weights must not be negative")
	}

	for _, m := range c.SafetyMetrics {
		if !IsKnownMetric(m) {
			problems = append(problems, fmt.Sprintf("unknown safety metric %q", m))
		}
	}

	switch c.CancellationMode {
	case CancelDrain, CancelAbandon:
	default:
		problems = append(problems, fmt.Sprintf("cancellation_mode must be drain or abandon, got %q", c.CancellationMode))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ============================================================================
// Campaign - 优化活动
// ============================================================================

// Campaign 表示针对一个基因组、一个目标指标的有界优化活动
//
// 不变式：活动在其生命周期内只引用一个基因组。
// 同一基因组可以有多个顺序或并发的活动，但对基因组
// 当前状态的换入必须串行化（由 Genome.Version 的 CAS 保证）。
type Campaign struct {
	ID            string                `json:"id" db:"id"`
	GenomeID      string                `json:"genome_id" db:"genome_id"`
	Name          string                `json:"name" db:"name"`
	Description   string                `json:"description,omitempty" db:"description"`
	TargetMetric  string                `json:"target_metric" db:"target_metric"`
	Configuration CampaignConfiguration `json:"configuration" db:"configuration"`
	Status        CampaignStatus        `json:"status" db:"status"`
	CreatedAt     time.Time             `json:"created_at" db:"created_at"`
}

// ============================================================================
// CampaignRun - 执行实例
// ============================================================================

// RunResults 执行结果摘要
type RunResults struct {
	MutationsTried    int     `json:"mutations_tried"`
	MutationsAccepted int     `json:"mutations_accepted"`
	MutationsRejected int     `json:"mutations_rejected"`
	MutationsFailed   int     `json:"mutations_failed"`
	BestComposite     float64 `json:"best_composite"`

	// Reason 终止原因（failed/cancelled 时填充，如 "timeout"）
	Reason string `json:"reason,omitempty"`
}

// CampaignRun 表示活动的一次执行
//
// 启动请求受理时以 queued 创建并派发到队列，控制器拾取后进入 running，
// 活动到达终止状态时关闭。队列投递丢失时由兜底扫描重新拾取。
type CampaignRun struct {
	ID          string      `json:"id" db:"id"`
	CampaignID  string      `json:"campaign_id" db:"campaign_id"`
	Status      RunStatus   `json:"status" db:"status"`
	Results     *RunResults `json:"results,omitempty" db:"results"`
	StartedAt   time.Time   `json:"started_at" db:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}
