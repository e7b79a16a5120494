// Package repository Genome 相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
	"genome-engine/internal/shared/storage/dbutil"
)

// CreateGenome 创建基因组，版本号从 1 开始
func (s *Store) CreateGenome(ctx context.Context, genome *model.Genome) error {
	if genome.Version == 0 {
		genome.Version = 1
	}
	if genome.CreatedAt.IsZero() {
		genome.CreatedAt = time.Now()
	}
	if genome.UpdatedAt.IsZero() {
		genome.UpdatedAt = genome.CreatedAt
	}
	metricsJSON, err := marshalMetrics(genome.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal genome metrics: %w", err)
	}
	query := s.rebind(`
		INSERT INTO genomes (id, name, user_id, data, metrics, status, version, repository_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	_, err = s.db.ExecContext(ctx, query,
		genome.ID, genome.Name, genome.UserID, []byte(genome.Data), metricsJSON,
		genome.Status, genome.Version, genome.RepositoryURL, genome.CreatedAt, genome.UpdatedAt)
	return err
}

// GetGenome 获取基因组
func (s *Store) GetGenome(ctx context.Context, id string) (*model.Genome, error) {
	query := s.rebind(`SELECT id, name, user_id, data, metrics, status, version, repository_url, created_at, updated_at
			  FROM genomes WHERE id = $1`)
	row := s.db.QueryRowContext(ctx, query, id)
	genome, err := scanGenome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return genome, err
}

// ListGenomes 列出基因组，status 为空时不过滤
func (s *Store) ListGenomes(ctx context.Context, status string, limit, offset int) ([]*model.Genome, error) {
	if limit <= 0 {
		limit = 100
	}
	base := `SELECT id, name, user_id, data, metrics, status, version, repository_url, created_at, updated_at FROM genomes`
	var conditions []string
	var args []interface{}
	if status != "" {
		conditions = append(conditions, "status = $1")
		args = append(args, status)
	}
	query, args := dbutil.BuildDynamicQuery(s.dialect, base, conditions, args)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGenomes(rows)
}

// UpdateGenomeStatus 更新基因组状态
func (s *Store) UpdateGenomeStatus(ctx context.Context, id string, status model.GenomeStatus) error {
	query := s.rebind(`UPDATE genomes SET status = $1, updated_at = $2 WHERE id = $3`)
	result, err := s.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CompareAndSwapGenome 原子换入基因组当前状态
//
// 仅当行内 version 仍等于 expectedVersion 时写入并将版本加一；
// 版本不匹配（并发修改）返回 ErrConflict，基因组不存在返回 ErrNotFound。
func (s *Store) CompareAndSwapGenome(ctx context.Context, id string, expectedVersion int64, data json.RawMessage, metrics *model.MetricsSnapshot) error {
	metricsJSON, err := marshalMetrics(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal genome metrics: %w", err)
	}
	query := s.rebind(`UPDATE genomes
			  SET data = $1, metrics = $2, version = version + 1, updated_at = $3
			  WHERE id = $4 AND version = $5`)
	result, err := s.db.ExecContext(ctx, query, []byte(data), metricsJSON, time.Now(), id, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err = s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM genomes WHERE id = $1`), id).Scan(&exists)
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

// marshalMetrics 序列化指标快照，nil 时返回 nil（写入 NULL）
func marshalMetrics(m *model.MetricsSnapshot) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// scanGenome 辅助函数
func scanGenome(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Genome, error) {
	genome := &model.Genome{}
	var data []byte
	var metricsRaw *[]byte
	err := scanner.Scan(
		&genome.ID, &genome.Name, &genome.UserID, &data, &metricsRaw, &genome.Status,
		&genome.Version, &genome.RepositoryURL, &genome.CreatedAt, &genome.UpdatedAt)
	if err != nil {
		return nil, err
	}
	genome.Data = json.RawMessage(data)
	if metricsRaw != nil && len(*metricsRaw) > 0 {
		m := &model.MetricsSnapshot{}
		if err := json.Unmarshal(*metricsRaw, m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal genome metrics: %w", err)
		}
		genome.Metrics = m
	}
	return genome, nil
}

// scanGenomes 批量扫描
func scanGenomes(rows *sql.Rows) ([]*model.Genome, error) {
	var genomes []*model.Genome
	for rows.Next() {
		genome, err := scanGenome(rows)
		if err != nil {
			return nil, err
		}
		genomes = append(genomes, genome)
	}
	return genomes, rows.Err()
}
