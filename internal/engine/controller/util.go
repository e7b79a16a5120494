package controller

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"genome-engine/internal/shared/model"
)

// generateID 生成带前缀的唯一标识符，格式为 prefix-xxxxxxxxxxxx
func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// renderDiff 渲染 original → mutated 的统一 diff，供人工审阅
func renderDiff(original, mutated string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(mutated),
		FromFile: "original",
		ToFile:   "mutated",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}

// snapshotFromTest 从一条测试记录构造评估后指标快照
//
// error_rate 取 1−pass_rate；样本数留给打分器从原始测试负载推断。
func snapshotFromTest(test *model.MutationTest) *model.MetricsSnapshot {
	return &model.MetricsSnapshot{
		SchemaVersion:  model.MetricsSchemaVersion,
		PassRate:       test.PassRate,
		LatencyMS:      test.LatencyMS,
		CPUUsage:       test.CPUUsage,
		MemoryUsage:    test.MemoryUsage,
		CostPerRequest: test.CostPerRequest,
		ErrorRate:      1 - test.PassRate,
		CollectedAt:    time.Now(),
	}
}

// emptySnapshot 基因组尚无指标时的零值基线
func emptySnapshot() *model.MetricsSnapshot {
	return &model.MetricsSnapshot{SchemaVersion: model.MetricsSchemaVersion}
}
