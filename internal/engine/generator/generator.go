// Package generator 变异生成器契约
//
// 生成器是可插拔的外部能力：针对基因组的当前状态产出候选变更。
// 引擎不假设生成器是确定的，也不关心它是否有内部状态；
// 引擎只要求它可以被反复调用。
package generator

import (
	"context"

	"genome-engine/internal/shared/model"
)

// Candidate 生成器产出的一个候选变更
//
// 候选只携带变更内容本身；序号、ID、状态等由控制器在持久化时分配。
type Candidate struct {
	MutationType string `json:"mutation_type"`
	MutatedCode  string `json:"mutated_code"`
	Description  string `json:"description,omitempty"`
	Explain      string `json:"explain,omitempty"`
}

// Generator 变异生成器
//
// Propose 针对基因组当前状态产出至多 count 个候选变更，按建议的
// 评估顺序返回。返回空切片表示生成器当前没有可提议的变更，
// 不是错误。瞬态故障用 evaluator.TransientError 包装，控制器会重试。
type Generator interface {
	Propose(ctx context.Context, genome *model.Genome, cfg model.CampaignConfiguration, count int) ([]*Candidate, error)
}
