// Package scorer 变异打分
//
// 打分是纯函数：(metrics_before, metrics_after, test_results, 活动配置)
// → (safety, confidence, composite)，全部归一化到 [0.0, 1.0]。
// 无隐藏随机性、无墙钟依赖，对历史数据重新打分必须得到相同结果。
package scorer

import (
	"encoding/json"
	"fmt"
	"math"

	"genome-engine/internal/shared/model"
)

// confidenceHalfSample 置信度半饱和样本数：n 个样本的置信度为 n/(n+half)
const confidenceHalfSample = 10

// Scores 一次打分的输出
type Scores struct {
	Safety     float64 `json:"safety_score"`
	Confidence float64 `json:"confidence_score"`
	Composite  float64 `json:"composite_score"`
}

// Input 一次打分的输入
//
// Tests 按时间升序（最新在末尾）；非聚合模式只使用最后一条。
type Input struct {
	Before       *model.MetricsSnapshot
	After        *model.MetricsSnapshot
	Tests        []*model.MutationTest
	Config       model.CampaignConfiguration
	TargetMetric string
}

// Scorer 打分器接口（控制器依赖点，便于测试注入）
type Scorer interface {
	Score(in Input) (Scores, error)
	Baseline(metrics *model.MetricsSnapshot, cfg model.CampaignConfiguration) float64
}

// Standard 默认打分实现
type Standard struct{}

func (Standard) Score(in Input) (Scores, error) {
	return Score(in)
}

func (Standard) Baseline(metrics *model.MetricsSnapshot, cfg model.CampaignConfiguration) float64 {
	return BaselineComposite(metrics, cfg)
}

// Score 计算安全、置信、综合三项得分
//
//	safety     = 1 − Σ 安全子指标的相对回归幅度
//	confidence = n/(n+half)，n 为测试样本数
//	composite  = w_s·safety + w_c·confidence + w_i·clamp01(improvement_ratio)
func Score(in Input) (Scores, error) {
	if in.Before == nil || in.After == nil {
		return Scores{}, fmt.Errorf("score: metrics_before and metrics_after are required")
	}
	if !model.IsKnownMetric(in.TargetMetric) {
		return Scores{}, fmt.Errorf("score: unknown target metric %q", in.TargetMetric)
	}

	safety := safetyScore(in.Before, in.After, in.Config.SafetyMetrics)
	confidence := confidenceScore(in.After, in.Tests, in.Config.UseAggregateTests)

	ratio, err := ImprovementRatio(in.Before, in.After, in.TargetMetric)
	if err != nil {
		return Scores{}, err
	}

	w := in.Config.Weights
	composite := w.Safety*safety + w.Confidence*confidence + w.Improvement*clamp01(ratio)

	return Scores{
		Safety:     safety,
		Confidence: confidence,
		Composite:  clamp01(composite),
	}, nil
}

// BaselineComposite 基因组当前状态的综合得分基线
//
// 基线相对自身无回归（safety=1）、无提升（improvement=0），
// 置信度来自快照的样本数。接受策略比较的就是候选综合得分
// 相对该基线的增量。
func BaselineComposite(metrics *model.MetricsSnapshot, cfg model.CampaignConfiguration) float64 {
	confidence := 0.0
	if metrics != nil {
		confidence = saturate(metrics.SampleCount)
	}
	w := cfg.Weights
	return clamp01(w.Safety*1.0 + w.Confidence*confidence)
}

// ImprovementRatio 目标指标的相对提升率，方向感知
//
// latency/cost/error_rate 等指标越低越好：ratio = (before−after)/|before|；
// pass_rate 越高越好：ratio = (after−before)/|before|。
// before 为 0 时按符号退化为 ±1/0。结果截断到 [−1, 1]。
func ImprovementRatio(before, after *model.MetricsSnapshot, metric string) (float64, error) {
	b, err := before.Metric(metric)
	if err != nil {
		return 0, err
	}
	a, err := after.Metric(metric)
	if err != nil {
		return 0, err
	}

	delta := a - b
	if model.LowerIsBetter(metric) {
		delta = b - a
	}

	scale := math.Abs(b)
	if scale == 0 {
		switch {
		case delta > 0:
			return 1, nil
		case delta < 0:
			return -1, nil
		default:
			return 0, nil
		}
	}
	return math.Max(-1, math.Min(1, delta/scale)), nil
}

// safetyScore 安全得分：对每个安全子指标的相对回归幅度累计扣分
func safetyScore(before, after *model.MetricsSnapshot, safetyMetrics []string) float64 {
	score := 1.0
	for _, m := range safetyMetrics {
		ratio, err := ImprovementRatio(before, after, m)
		if err != nil {
			continue
		}
		if ratio < 0 {
			score += ratio // 回归即扣分
		}
	}
	return clamp01(score)
}

// confidenceScore 置信度得分：样本数饱和函数
func confidenceScore(after *model.MetricsSnapshot, tests []*model.MutationTest, aggregate bool) float64 {
	n := after.SampleCount
	if n == 0 {
		if aggregate {
			for _, t := range tests {
				n += sampleCountOf(t)
			}
		} else if len(tests) > 0 {
			n = sampleCountOf(tests[len(tests)-1])
		}
	}
	return saturate(n)
}

// sampleCountOf 从原始测试负载中提取样本数，缺省为 1
func sampleCountOf(t *model.MutationTest) int {
	if len(t.TestResults) > 0 {
		var payload struct {
			SampleCount int `json:"sample_count"`
		}
		if err := json.Unmarshal(t.TestResults, &payload); err == nil && payload.SampleCount > 0 {
			return payload.SampleCount
		}
	}
	return 1
}

func saturate(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) / float64(n+confidenceHalfSample)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
