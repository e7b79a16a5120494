package evaluator

import (
	"context"
	"sync"
	"time"

	"genome-engine/internal/shared/model"
)

// Func 函数适配器，便于用闭包充当评估器
type Func func(ctx context.Context, mutation *model.Mutation) (*model.MutationTest, error)

func (f Func) Evaluate(ctx context.Context, mutation *model.Mutation) (*model.MutationTest, error) {
	return f(ctx, mutation)
}

// Outcome 一次模拟评估的结果脚本
type Outcome struct {
	Test  *model.MutationTest
	Err   error
	Delay time.Duration // 返回前的模拟执行耗时
}

// Mock 可编程评估器
//
// 按变异的 Description 匹配脚本，逐次弹出；脚本耗尽或未匹配时
// 返回 Default。Delay 期间尊重 ctx 取消（返回瞬态错误）。
type Mock struct {
	mu            sync.Mutex
	byDescription map[string][]Outcome

	Default Outcome
	Calls   int
}

// NewMock 创建评估器 mock，默认返回全通过的测试记录
func NewMock() *Mock {
	return &Mock{
		byDescription: make(map[string][]Outcome),
		Default: Outcome{
			Test: &model.MutationTest{PassRate: 1.0},
		},
	}
}

// Script 为匹配 description 的变异追加结果脚本
func (m *Mock) Script(description string, outcomes ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDescription[description] = append(m.byDescription[description], outcomes...)
}

// CallCount 返回累计调用次数
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

func (m *Mock) Evaluate(ctx context.Context, mutation *model.Mutation) (*model.MutationTest, error) {
	m.mu.Lock()
	m.Calls++
	outcome := m.Default
	if queue, ok := m.byDescription[mutation.Description]; ok && len(queue) > 0 {
		outcome = queue[0]
		m.byDescription[mutation.Description] = queue[1:]
	}
	m.mu.Unlock()

	if outcome.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, Transient(ctx.Err())
		case <-time.After(outcome.Delay):
		}
	}

	if outcome.Err != nil {
		return nil, outcome.Err
	}

	test := outcome.Test
	if test == nil {
		test = &model.MutationTest{PassRate: 1.0}
	}
	// 每次调用产出独立记录
	cp := *test
	cp.MutationID = mutation.ID
	return &cp, nil
}
