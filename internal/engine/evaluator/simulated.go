// Package evaluator 内置模拟评估器
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"genome-engine/internal/shared/model"
)

// Simulated 内置模拟评估器
//
// 开发与演示环境的默认评估器：不运行真实测试套件，而是从变异负载
// 哈希出稳定的指标，同一变异重复评估产出相同结果（满足评估器的
// 可重复调用契约）。生产环境应替换为对接真实测试框架的实现。
//
// Latency 非零时每次评估睡眠该时长，模拟真实测试的耗时。
type Simulated struct {
	Latency time.Duration
}

func (s Simulated) Evaluate(ctx context.Context, mutation *model.Mutation) (*model.MutationTest, error) {
	if s.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.Latency):
		}
	}

	h := fnv.New64a()
	h.Write([]byte(mutation.MutatedCode))
	seed := h.Sum64()

	// 各指标取哈希的不同位段，落在合理的数值区间内
	passRate := 0.80 + float64(seed%2000)/10000.0          // 0.80 – 0.9999
	latencyMS := 50.0 + float64((seed>>16)%1000)/10.0      // 50 – 149.9 ms
	cpuUsage := 0.10 + float64((seed>>32)%500)/1000.0      // 0.10 – 0.599
	memoryUsage := 64.0 + float64((seed>>40)%192)          // 64 – 255 MB
	costPerRequest := 0.001 + float64((seed>>48)%90)/10000 // 0.001 – 0.0099

	raw, err := json.Marshal(map[string]interface{}{
		"simulated": true,
		"seed":      fmt.Sprintf("%016x", seed),
	})
	if err != nil {
		return nil, err
	}

	return &model.MutationTest{
		PassRate:       passRate,
		LatencyMS:      latencyMS,
		CPUUsage:       cpuUsage,
		MemoryUsage:    memoryUsage,
		CostPerRequest: costPerRequest,
		TestResults:    raw,
	}, nil
}
