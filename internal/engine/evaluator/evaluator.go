// Package evaluator 评估器契约与重试策略
//
// 评估器是可插拔的外部能力：在隔离环境中运行变异的测试套件，
// 报告原始指标。测试框架本身是领域相关的，不在引擎范围内。
//
// 契约：
//   - 评估从不修改基因组
//   - 对同一变异可安全重复调用：每次调用产出一条独立的测试记录，
//     不产生任何基因组侧副作用
//   - 错误分为瞬态（可重试，如超时）与永久（如负载畸形）两类，
//     未分类的错误按永久处理
package evaluator

import (
	"context"

	"genome-engine/internal/shared/model"
)

// Evaluator 变异评估器
type Evaluator interface {
	Evaluate(ctx context.Context, mutation *model.Mutation) (*model.MutationTest, error)
}
