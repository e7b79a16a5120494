package generator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genome-engine/internal/shared/model"
)

func TestScriptedPopsBatches(t *testing.T) {
	gen := NewScripted(
		[]*Candidate{{MutationType: "a"}, {MutationType: "b"}},
		[]*Candidate{{MutationType: "c"}},
	)
	genome := &model.Genome{ID: "genome-1"}
	cfg := model.DefaultConfiguration()

	batch, err := gen.Propose(context.Background(), genome, cfg, 5)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	// count 截断批次
	batch, err = gen.Propose(context.Background(), genome, cfg, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "c", batch[0].MutationType)

	// 脚本耗尽返回空
	batch, err = gen.Propose(context.Background(), genome, cfg, 5)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 3, gen.Calls)
}

func TestScriptedFailNext(t *testing.T) {
	gen := NewScripted([]*Candidate{{MutationType: "a"}})
	gen.FailNext(2, errors.New("down"))

	for i := 0; i < 2; i++ {
		_, err := gen.Propose(context.Background(), &model.Genome{}, model.DefaultConfiguration(), 1)
		require.Error(t, err)
	}

	batch, err := gen.Propose(context.Background(), &model.Genome{}, model.DefaultConfiguration(), 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
}

func TestSeededDeterminism(t *testing.T) {
	genome := &model.Genome{
		ID:      "genome-1",
		Version: 3,
		Data:    json.RawMessage(`{"model": "base", "temperature": 0.7}`),
	}
	cfg := model.DefaultConfiguration()
	cfg.Seed = 42

	var gen Seeded
	first, err := gen.Propose(context.Background(), genome, cfg, 4)
	require.NoError(t, err)
	require.Len(t, first, 4)

	// 同一 (version, seed, count) 输入产出完全相同的候选序列
	again, err := gen.Propose(context.Background(), genome, cfg, 4)
	require.NoError(t, err)
	require.Equal(t, first, again)

	// 候选负载保持合法 JSON，且保留原字段
	for _, c := range first {
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(c.MutatedCode), &payload))
		assert.Equal(t, "base", payload["model"])
		assert.Contains(t, payload, "variant")
	}

	// 版本推进后候选序列变化（新基线重新采样）
	genome.Version = 4
	shifted, err := gen.Propose(context.Background(), genome, cfg, 4)
	require.NoError(t, err)
	assert.NotEqual(t, first, shifted)
}
