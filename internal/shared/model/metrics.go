// Package model 定义核心数据模型
//
// metrics.go 包含性能指标相关的数据模型定义：
//   - MetricsSnapshot：一次测量得到的性能指标快照
//   - 目标指标（target metric）的合法取值与优化方向
//
// 设计说明：原始系统将指标存储为无类型 JSON 文档，
// 这里提升为带版本号的窄结构，换取编译期与运行期校验。
package model

import (
	"fmt"
	"time"
)

// MetricsSchemaVersion 当前指标快照结构版本
const MetricsSchemaVersion = 1

// ============================================================================
// 目标指标枚举
// ============================================================================

// 合法的 target_metric 取值
const (
	MetricPassRate       = "pass_rate"
	MetricLatencyMS      = "latency_ms"
	MetricCPUUsage       = "cpu_usage"
	MetricMemoryUsage    = "memory_usage"
	MetricCostPerRequest = "cost_per_request"
	MetricErrorRate      = "error_rate"
)

// knownMetrics 指标名 -> 是否"越低越好"
var knownMetrics = map[string]bool{
	MetricPassRate:       false,
	MetricLatencyMS:      true,
	MetricCPUUsage:       true,
	MetricMemoryUsage:    true,
	MetricCostPerRequest: true,
	MetricErrorRate:      true,
}

// IsKnownMetric 判断指标名是否合法
func IsKnownMetric(name string) bool {
	_, ok := knownMetrics[name]
	return ok
}

// LowerIsBetter 判断指标的优化方向
// latency/cost/error_rate 等指标数值越低越好；pass_rate 越高越好
func LowerIsBetter(name string) bool {
	return knownMetrics[name]
}

// ============================================================================
// MetricsSnapshot - 性能指标快照
// ============================================================================

// MetricsSnapshot 表示某一时刻测量到的基因组性能
//
// 快照是不可变的值对象：
//   - 基因组的 metrics 字段保存最近一次接受变异后的快照
//   - 变异的 metrics_before/metrics_after 保存评估前后的快照
//   - 打分器只读取快照，从不修改
type MetricsSnapshot struct {
	// SchemaVersion 结构版本号，便于日后演进
	SchemaVersion int `json:"schema_version"`

	// PassRate 测试通过率 [0.0, 1.0]
	PassRate float64 `json:"pass_rate"`

	// LatencyMS 平均响应延迟（毫秒）
	LatencyMS float64 `json:"latency_ms"`

	// CPUUsage CPU 占用率 [0.0, 1.0]
	CPUUsage float64 `json:"cpu_usage"`

	// MemoryUsage 内存占用（MB）
	MemoryUsage float64 `json:"memory_usage"`

	// CostPerRequest 单请求成本（美元）
	CostPerRequest float64 `json:"cost_per_request"`

	// ErrorRate 错误率 [0.0, 1.0]，安全相关子指标
	ErrorRate float64 `json:"error_rate"`

	// SampleCount 快照背后的样本数（用于置信度打分）
	SampleCount int `json:"sample_count"`

	// CollectedAt 采集时间
	CollectedAt time.Time `json:"collected_at"`
}

// Metric 按指标名取值
func (m *MetricsSnapshot) Metric(name string) (float64, error) {
	switch name {
	case MetricPassRate:
		return m.PassRate, nil
	case MetricLatencyMS:
		return m.LatencyMS, nil
	case MetricCPUUsage:
		return m.CPUUsage, nil
	case MetricMemoryUsage:
		return m.MemoryUsage, nil
	case MetricCostPerRequest:
		return m.CostPerRequest, nil
	case MetricErrorRate:
		return m.ErrorRate, nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", name)
	}
}
