// Package objstore 变异工件归档
//
// 接受/拒绝与否，每个变异的前后代码和评估结果都会归档到对象存储，
// 供事后离线审查。Key 布局：
//
//	mutations/{mutation_id}/original
//	mutations/{mutation_id}/mutated
//	mutations/{mutation_id}/tests/{test_id}.json
package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// MutationOriginalKey 变异前代码的对象 Key
func MutationOriginalKey(mutationID string) string {
	return fmt.Sprintf("mutations/%s/original", mutationID)
}

// MutationMutatedKey 变异后代码的对象 Key
func MutationMutatedKey(mutationID string) string {
	return fmt.Sprintf("mutations/%s/mutated", mutationID)
}

// MutationTestKey 评估结果的对象 Key
func MutationTestKey(mutationID, testID string) string {
	return fmt.Sprintf("mutations/%s/tests/%s.json", mutationID, testID)
}

// ArchiveMutationCode 归档变异的前后代码
func (c *Client) ArchiveMutationCode(ctx context.Context, mutationID, original, mutated string) error {
	if err := c.Upload(ctx, MutationOriginalKey(mutationID),
		bytes.NewReader([]byte(original)), int64(len(original)), "text/plain"); err != nil {
		return err
	}
	return c.Upload(ctx, MutationMutatedKey(mutationID),
		bytes.NewReader([]byte(mutated)), int64(len(mutated)), "text/plain")
}

// ArchiveTestResults 归档一次评估的完整结果
func (c *Client) ArchiveTestResults(ctx context.Context, mutationID, testID string, results json.RawMessage) error {
	if len(results) == 0 {
		results = json.RawMessage("{}")
	}
	return c.Upload(ctx, MutationTestKey(mutationID, testID),
		bytes.NewReader(results), int64(len(results)), "application/json")
}
