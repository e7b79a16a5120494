// Package repository 建议(genome_suggestions)相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
	"genome-engine/internal/shared/storage/dbutil"
)

const suggestionColumns = `id, genome_id, suggestion_type, title, description, template_patch, confidence, priority, status, created_at`

// CreateSuggestion 创建建议
//
// 同一基因组下 (suggestion_type, title) 去重：重复生成时
// 刷新 confidence/description，不插入新行（UPSERT）。
func (s *Store) CreateSuggestion(ctx context.Context, suggestion *model.Suggestion) error {
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = time.Now()
	}
	conflict := s.dialect.UpsertConflict(
		[]string{"genome_id", "suggestion_type", "title"},
		[]string{
			"description = EXCLUDED.description",
			"template_patch = EXCLUDED.template_patch",
			"confidence = EXCLUDED.confidence",
			"priority = EXCLUDED.priority",
		})
	query := s.rebind(`
		INSERT INTO genome_suggestions (id, genome_id, suggestion_type, title, description, template_patch, confidence, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ` + conflict)
	_, err := s.db.ExecContext(ctx, query,
		suggestion.ID, suggestion.GenomeID, suggestion.SuggestionType, suggestion.Title,
		suggestion.Description, suggestion.TemplatePatch, suggestion.Confidence,
		suggestion.Priority, suggestion.Status, suggestion.CreatedAt)
	return err
}

// ListSuggestionsByGenome 列出基因组的建议，status 为空时不过滤
func (s *Store) ListSuggestionsByGenome(ctx context.Context, genomeID string, status string) ([]*model.Suggestion, error) {
	base := `SELECT ` + suggestionColumns + ` FROM genome_suggestions`
	conditions := []string{"genome_id = $1"}
	args := []interface{}{genomeID}
	if status != "" {
		conditions = append(conditions, "status = $2")
		args = append(args, status)
	}
	query, args := dbutil.BuildDynamicQuery(s.dialect, base, conditions, args)
	query += ` ORDER BY confidence DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suggestions []*model.Suggestion
	for rows.Next() {
		suggestion := &model.Suggestion{}
		err := rows.Scan(
			&suggestion.ID, &suggestion.GenomeID, &suggestion.SuggestionType, &suggestion.Title,
			&suggestion.Description, &suggestion.TemplatePatch, &suggestion.Confidence,
			&suggestion.Priority, &suggestion.Status, &suggestion.CreatedAt)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, rows.Err()
}

// UpdateSuggestionStatus 更新建议状态
//
// 只允许 new → accepted/dismissed；已处理的建议返回 ErrConflict。
func (s *Store) UpdateSuggestionStatus(ctx context.Context, id string, status model.SuggestionStatus) error {
	if status != model.SuggestionStatusAccepted && status != model.SuggestionStatusDismissed {
		return fmt.Errorf("invalid suggestion status transition to %q", status)
	}
	query := s.rebind(`UPDATE genome_suggestions SET status = $1 WHERE id = $2 AND status = 'new'`)
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
		err = s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM genome_suggestions WHERE id = $1`), id).Scan(&exists)
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
