package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"genome-engine/internal/shared/model"
)

// Scripted 按预置脚本逐批返回候选的生成器
//
// 每次 Propose 弹出下一批脚本；脚本耗尽后返回空切片。
// 用于测试和演示环境（真实生成器是外部服务）。
type Scripted struct {
	mu      sync.Mutex
	batches [][]*Candidate
	errs    []error // 与批次并行的错误脚本，nil 表示该次调用成功
	Calls   int
}

// NewScripted 创建脚本生成器
func NewScripted(batches ...[]*Candidate) *Scripted {
	return &Scripted{batches: batches}
}

// FailNext 在脚本头部插入 n 次失败
func (s *Scripted) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.errs = append([]error{err}, s.errs...)
	}
}

func (s *Scripted) Propose(ctx context.Context, genome *model.Genome, cfg model.CampaignConfiguration, count int) ([]*Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	if count < len(batch) {
		batch = batch[:count]
	}
	return batch, nil
}

// ============================================================================
// Seeded - 可复现的演示生成器
// ============================================================================

// seededMutationTypes 演示生成器使用的变异类型池
var seededMutationTypes = []string{
	"parameter_tune",
	"prompt_rewrite",
	"structure_refactor",
	"tool_swap",
}

// Seeded 基于活动种子的确定性生成器
//
// 对同一 (genome.Version, cfg.Seed, count) 输入，产出完全相同的候选序列，
// 保证活动重跑可复现。候选内容是对基因组负载的标注性改写，
// 评估价值由评估器决定，生成器只负责提供多样的候选。
type Seeded struct{}

func (Seeded) Propose(ctx context.Context, genome *model.Genome, cfg model.CampaignConfiguration, count int) ([]*Candidate, error) {
	rng := rand.New(rand.NewSource(cfg.Seed + genome.Version))

	// 基因组负载是 JSON 文档；候选在其上叠加一个 variant 标注字段，
	// 保持负载对存储层（JSONB 列）始终合法
	var payload map[string]interface{}
	if err := json.Unmarshal(genome.Data, &payload); err != nil || payload == nil {
		payload = map[string]interface{}{"payload": string(genome.Data)}
	}

	candidates := make([]*Candidate, 0, count)
	for i := 0; i < count; i++ {
		mt := seededMutationTypes[rng.Intn(len(seededMutationTypes))]
		variant := fmt.Sprintf("%s-%04x", mt, rng.Intn(1<<16))

		mutated := make(map[string]interface{}, len(payload)+1)
		for k, v := range payload {
			mutated[k] = v
		}
		mutated["variant"] = variant

		data, err := json.Marshal(mutated)
		if err != nil {
			return nil, fmt.Errorf("marshal candidate payload: %w", err)
		}

		candidates = append(candidates, &Candidate{
			MutationType: mt,
			MutatedCode:  string(data),
			Description:  fmt.Sprintf("%s variant %s", mt, variant),
			Explain:      fmt.Sprintf("seeded candidate %d of %d for genome version %d", i+1, count, genome.Version),
		})
	}
	return candidates, nil
}
