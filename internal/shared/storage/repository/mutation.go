// Package repository Mutation / MutationTest 相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
)

const mutationColumns = `id, campaign_id, genome_id, sequence, mutation_type, original_code, mutated_code, diff,
	description, explanation, status, metrics_before, metrics_after,
	safety_score, confidence_score, composite_score, applied_at, applied_by, created_at`

// CreateMutation 创建变异记录
func (s *Store) CreateMutation(ctx context.Context, mutation *model.Mutation) error {
	beforeJSON, err := marshalMetrics(mutation.MetricsBefore)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics_before: %w", err)
	}
	afterJSON, err := marshalMetrics(mutation.MetricsAfter)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics_after: %w", err)
	}
	if mutation.CreatedAt.IsZero() {
		mutation.CreatedAt = time.Now()
	}
	query := s.rebind(`
		INSERT INTO mutations (id, campaign_id, genome_id, sequence, mutation_type, original_code, mutated_code, diff,
			description, explanation, status, metrics_before, metrics_after,
			safety_score, confidence_score, composite_score, applied_at, applied_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`)
	_, err = s.db.ExecContext(ctx, query,
		mutation.ID, mutation.CampaignID, mutation.GenomeID, mutation.Sequence,
		mutation.MutationType, mutation.OriginalCode, mutation.MutatedCode, mutation.Diff,
		mutation.Description, mutation.Explain, mutation.Status, beforeJSON, afterJSON,
		mutation.SafetyScore, mutation.ConfidenceScore, mutation.CompositeScore,
		mutation.AppliedAt, mutation.AppliedBy, mutation.CreatedAt)
	return err
}

// GetMutation 获取变异
func (s *Store) GetMutation(ctx context.Context, id string) (*model.Mutation, error) {
	query := s.rebind(`SELECT ` + mutationColumns + ` FROM mutations WHERE id = $1`)
	row := s.db.QueryRowContext(ctx, query, id)
	mutation, err := scanMutation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return mutation, err
}

// ListMutationsByCampaign 按评估顺序列出活动的全部变异
func (s *Store) ListMutationsByCampaign(ctx context.Context, campaignID string) ([]*model.Mutation, error) {
	query := s.rebind(`SELECT ` + mutationColumns + ` FROM mutations WHERE campaign_id = $1 ORDER BY sequence ASC`)
	rows, err := s.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMutations(rows)
}

// ListMutationsByGenome 列出基因组名下全部活动的变异（建议分析使用）
func (s *Store) ListMutationsByGenome(ctx context.Context, genomeID string) ([]*model.Mutation, error) {
	var query string
	if s.dialect.SupportsNullsLast() {
		query = s.rebind(`SELECT ` + mutationColumns + ` FROM mutations
			  WHERE genome_id = $1 ORDER BY composite_score DESC ` + s.dialect.NullsLastClause() + `, created_at DESC`)
	} else {
		// SQLite: 用 CASE 模拟 NULLS LAST
		query = s.rebind(`SELECT ` + mutationColumns + ` FROM mutations
			  WHERE genome_id = $1 ORDER BY CASE WHEN composite_score IS NULL THEN 1 ELSE 0 END, composite_score DESC, created_at DESC`)
	}
	rows, err := s.db.QueryContext(ctx, query, genomeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMutations(rows)
}

// UpdateMutationStatus 更新变异状态
//
// 终止状态是吸收态：已到达终止状态的变异拒绝再迁移，返回 ErrConflict。
func (s *Store) UpdateMutationStatus(ctx context.Context, id string, status model.MutationStatus) error {
	query := s.rebind(`UPDATE mutations SET status = $1
			  WHERE id = $2 AND status NOT IN ('applied', 'rejected', 'failed')`)
	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err = s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM mutations WHERE id = $1`), id).Scan(&exists)
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return storage.ErrConflict
	}
	return nil
}

// SetMutationScores 写入打分结果并迁移到 scored
func (s *Store) SetMutationScores(ctx context.Context, id string, safety, confidence, composite float64) error {
	query := s.rebind(`UPDATE mutations
			  SET safety_score = $1, confidence_score = $2, composite_score = $3, status = 'scored'
			  WHERE id = $4 AND status = 'testing'`)
	result, err := s.db.ExecContext(ctx, query, safety, confidence, composite, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

// MarkMutationApplied 将 scored 变异迁移到 applied 并记录操作者
func (s *Store) MarkMutationApplied(ctx context.Context, id string, appliedBy string, appliedAt time.Time) error {
	query := s.rebind(`UPDATE mutations SET status = 'applied', applied_by = $1, applied_at = $2
			  WHERE id = $3 AND status = 'scored'`)
	result, err := s.db.ExecContext(ctx, query, appliedBy, appliedAt, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

// MaxMutationSequence 返回活动内已分配的最大序号（无变异时为 0）
func (s *Store) MaxMutationSequence(ctx context.Context, campaignID string) (int, error) {
	query := s.rebind(`SELECT COALESCE(MAX(sequence), 0) FROM mutations WHERE campaign_id = $1`)
	var max int
	err := s.db.QueryRowContext(ctx, query, campaignID).Scan(&max)
	return max, err
}

// scanMutation 辅助函数
func scanMutation(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Mutation, error) {
	mutation := &model.Mutation{}
	var beforeRaw, afterRaw *[]byte
	err := scanner.Scan(
		&mutation.ID, &mutation.CampaignID, &mutation.GenomeID, &mutation.Sequence,
		&mutation.MutationType, &mutation.OriginalCode, &mutation.MutatedCode, &mutation.Diff,
		&mutation.Description, &mutation.Explain, &mutation.Status, &beforeRaw, &afterRaw,
		&mutation.SafetyScore, &mutation.ConfidenceScore, &mutation.CompositeScore,
		&mutation.AppliedAt, &mutation.AppliedBy, &mutation.CreatedAt)
	if err != nil {
		return nil, err
	}
	if beforeRaw != nil && len(*beforeRaw) > 0 {
		m := &model.MetricsSnapshot{}
		if err := json.Unmarshal(*beforeRaw, m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics_before: %w", err)
		}
		mutation.MetricsBefore = m
	}
	if afterRaw != nil && len(*afterRaw) > 0 {
		m := &model.MetricsSnapshot{}
		if err := json.Unmarshal(*afterRaw, m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics_after: %w", err)
		}
		mutation.MetricsAfter = m
	}
	return mutation, nil
}

// scanMutations 批量扫描
func scanMutations(rows *sql.Rows) ([]*model.Mutation, error) {
	var mutations []*model.Mutation
	for rows.Next() {
		mutation, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		mutations = append(mutations, mutation)
	}
	return mutations, rows.Err()
}

// ============================================================================
// MutationTest
// ============================================================================

const testColumns = `id, mutation_id, pass_rate, latency_ms, cpu_usage, memory_usage, cost_per_request, test_results, created_at`

// CreateMutationTest 记录一次评估结果
func (s *Store) CreateMutationTest(ctx context.Context, test *model.MutationTest) error {
	query := s.rebind(`
		INSERT INTO mutation_tests (id, mutation_id, pass_rate, latency_ms, cpu_usage, memory_usage, cost_per_request, test_results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	var resultsJSON []byte
	if test.TestResults != nil {
		resultsJSON = []byte(test.TestResults)
	}
	if test.CreatedAt.IsZero() {
		test.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		test.ID, test.MutationID, test.PassRate, test.LatencyMS, test.CPUUsage,
		test.MemoryUsage, test.CostPerRequest, resultsJSON, test.CreatedAt)
	return err
}

// ListTestsByMutation 列出变异的评估记录，最新的在前
func (s *Store) ListTestsByMutation(ctx context.Context, mutationID string) ([]*model.MutationTest, error) {
	query := s.rebind(`SELECT ` + testColumns + ` FROM mutation_tests WHERE mutation_id = $1 ORDER BY created_at DESC, id DESC`)
	rows, err := s.db.QueryContext(ctx, query, mutationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []*model.MutationTest
	for rows.Next() {
		test := &model.MutationTest{}
		var resultsRaw *[]byte
		err := rows.Scan(
			&test.ID, &test.MutationID, &test.PassRate, &test.LatencyMS, &test.CPUUsage,
			&test.MemoryUsage, &test.CostPerRequest, &resultsRaw, &test.CreatedAt)
		if err != nil {
			return nil, err
		}
		if resultsRaw != nil {
			test.TestResults = json.RawMessage(*resultsRaw)
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}
