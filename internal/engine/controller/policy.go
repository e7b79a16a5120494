package controller

import (
	"genome-engine/internal/engine/scorer"
	"genome-engine/internal/shared/model"
)

// 拒绝原因（写入台账 metadata 与事件流）
const (
	ReasonTestsFailed             = "tests_failed"
	ReasonSafetyBelowFloor        = "safety_below_floor"
	ReasonInsufficientImprovement = "insufficient_improvement"
	ReasonSuperseded              = "superseded"
)

// scoreEpsilon 浮点比较容差：提升恰好等于 min_improvement 时必须接受
const scoreEpsilon = 1e-9

// Decision 接受策略的判定结果
type Decision struct {
	Accept bool
	Reason string // 拒绝原因，Accept 时为空
}

// evaluateAcceptance 接受策略（纯函数）
//
// 接受当且仅当：全部测试通过，安全得分不低于下限，
// 且综合得分相对当前基线的提升不小于 min_improvement。
func evaluateAcceptance(scores scorer.Scores, passRate, baselineComposite float64, cfg model.CampaignConfiguration) Decision {
	if passRate < 1.0 {
		return Decision{Reason: ReasonTestsFailed}
	}
	if scores.Safety < cfg.SafetyFloor {
		return Decision{Reason: ReasonSafetyBelowFloor}
	}
	if scores.Composite-baselineComposite < cfg.MinImprovement-scoreEpsilon {
		return Decision{Reason: ReasonInsufficientImprovement}
	}
	return Decision{Accept: true}
}
