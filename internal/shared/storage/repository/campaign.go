// Package repository Campaign / CampaignRun 相关的存储操作
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

const campaignColumns = `id, genome_id, name, description, target_metric, configuration, status, created_at`

// CreateCampaign 创建活动
func (s *Store) CreateCampaign(ctx context.Context, campaign *model.Campaign) error {
	configJSON, err := json.Marshal(campaign.Configuration)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign configuration: %w", err)
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now()
	}
	query := s.rebind(`
		INSERT INTO campaigns (id, genome_id, name, description, target_metric, configuration, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	_, err = s.db.ExecContext(ctx, query,
		campaign.ID, campaign.GenomeID, campaign.Name, campaign.Description,
		campaign.TargetMetric, configJSON, campaign.Status, campaign.CreatedAt)
	return err
}

// GetCampaign 获取活动
func (s *Store) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	query := s.rebind(`SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`)
	row := s.db.QueryRowContext(ctx, query, id)
	campaign, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return campaign, err
}

// ListCampaigns 列出活动，status 为空时不过滤
func (s *Store) ListCampaigns(ctx context.Context, status string, limit, offset int) ([]*model.Campaign, error) {
	if limit <= 0 {
		limit = 100
	}
	base := `SELECT ` + campaignColumns + ` FROM campaigns`
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
	return scanCampaigns(rows)
}

// ListCampaignsByGenome 列出基因组关联的全部活动
func (s *Store) ListCampaignsByGenome(ctx context.Context, genomeID string) ([]*model.Campaign, error) {
	query := s.rebind(`SELECT ` + campaignColumns + ` FROM campaigns WHERE genome_id = $1 ORDER BY created_at DESC`)
	rows, err := s.db.QueryContext(ctx, query, genomeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// UpdateCampaignStatus 更新活动状态
//
// 终止状态是吸收态：已终止的活动拒绝任何迁移，返回 ErrConflict。
func (s *Store) UpdateCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	query := s.rebind(`UPDATE campaigns SET status = $1
			  WHERE id = $2 AND status NOT IN ('completed', 'failed', 'cancelled')`)
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
		err = s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM campaigns WHERE id = $1`), id).Scan(&exists)
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

// scanCampaign 辅助函数
func scanCampaign(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Campaign, error) {
	campaign := &model.Campaign{}
	var configRaw []byte
	err := scanner.Scan(
		&campaign.ID, &campaign.GenomeID, &campaign.Name, &campaign.Description,
		&campaign.TargetMetric, &configRaw, &campaign.Status, &campaign.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(configRaw, &campaign.Configuration); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign configuration: %w", err)
	}
	return campaign, nil
}

// scanCampaigns 批量扫描
func scanCampaigns(rows *sql.Rows) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

// ============================================================================
// CampaignRun
// ============================================================================

const runColumns = `id, campaign_id, status, results, started_at, completed_at`

// CreateCampaignRun 创建执行实例
func (s *Store) CreateCampaignRun(ctx context.Context, run *model.CampaignRun) error {
	resultsJSON, err := marshalResults(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal run results: %w", err)
	}
	if run.StartedAt.IsZero() {
		// 入队时间：保底轮询以此判断 queued 执行是否滞留
		run.StartedAt = time.Now()
	}
	query := s.rebind(`
		INSERT INTO campaign_runs (id, campaign_id, status, results, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.CampaignID, run.Status, resultsJSON, run.StartedAt, run.CompletedAt)
	return err
}

// GetCampaignRun 获取执行实例
func (s *Store) GetCampaignRun(ctx context.Context, id string) (*model.CampaignRun, error) {
	query := s.rebind(`SELECT ` + runColumns + ` FROM campaign_runs WHERE id = $1`)
	row := s.db.QueryRowContext(ctx, query, id)
	run, err := scanCampaignRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRunsByCampaign 列出活动的所有执行
func (s *Store) ListRunsByCampaign(ctx context.Context, campaignID string) ([]*model.CampaignRun, error) {
	query := s.rebind(`SELECT ` + runColumns + ` FROM campaign_runs WHERE campaign_id = $1 ORDER BY started_at DESC`)
	rows, err := s.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaignRuns(rows)
}

// ListQueuedRuns 列出待拾取的执行
func (s *Store) ListQueuedRuns(ctx context.Context, limit int) ([]*model.CampaignRun, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.rebind(`SELECT ` + runColumns + ` FROM campaign_runs
			  WHERE status = 'queued' ORDER BY started_at ASC LIMIT $1`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaignRuns(rows)
}

// ListStaleQueuedRuns 列出"过期"的 queued 执行（队列投递丢失时的兜底扫描）
func (s *Store) ListStaleQueuedRuns(ctx context.Context, threshold time.Duration) ([]*model.CampaignRun, error) {
	cutoff := time.Now().Add(-threshold)
	query := s.rebind(`SELECT ` + runColumns + ` FROM campaign_runs
			  WHERE status = 'queued' AND started_at < $1
			  ORDER BY started_at ASC
			  LIMIT 100`)
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaignRuns(rows)
}

// UpdateCampaignRunStatus 更新执行状态
//
// 进入 running 时刷新 started_at；进入终止状态时写入 completed_at 和结果摘要。
func (s *Store) UpdateCampaignRunStatus(ctx context.Context, id string, status model.RunStatus, results *model.RunResults) error {
	var query string
	var args []interface{}
	switch status {
	case model.RunStatusRunning:
		query = s.rebind(`UPDATE campaign_runs SET status = $1, started_at = $2 WHERE id = $3`)
		args = []interface{}{status, time.Now(), id}
	case model.RunStatusCompleted, model.RunStatusFailed, model.RunStatusCancelled:
		resultsJSON, err := marshalResults(results)
		if err != nil {
			return fmt.Errorf("failed to marshal run results: %w", err)
		}
		query = s.rebind(`UPDATE campaign_runs SET status = $1, results = $2, completed_at = $3 WHERE id = $4`)
		args = []interface{}{status, resultsJSON, time.Now(), id}
	default:
		query = s.rebind(`UPDATE campaign_runs SET status = $1 WHERE id = $2`)
		args = []interface{}{status, id}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
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

// marshalResults 序列化结果摘要，nil 时返回 nil（写入 NULL）
func marshalResults(r *model.RunResults) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// scanCampaignRun 辅助函数
func scanCampaignRun(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.CampaignRun, error) {
	run := &model.CampaignRun{}
	var resultsRaw *[]byte
	err := scanner.Scan(
		&run.ID, &run.CampaignID, &run.Status, &resultsRaw, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	if resultsRaw != nil && len(*resultsRaw) > 0 {
		r := &model.RunResults{}
		if err := json.Unmarshal(*resultsRaw, r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run results: %w", err)
		}
		run.Results = r
	}
	return run, nil
}

// scanCampaignRuns 批量扫描
func scanCampaignRuns(rows *sql.Rows) ([]*model.CampaignRun, error) {
	var runs []*model.CampaignRun
	for rows.Next() {
		run, err := scanCampaignRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
