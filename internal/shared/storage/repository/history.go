// Package repository 审计台账(mutation_history)相关的存储操作
//
// 台账是仅追加的：这里只有 INSERT 和 SELECT，没有 UPDATE/DELETE。
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage/dbutil"
)

const historyColumns = `id, mutation_id, campaign_id, action, actor, metadata, created_at`

// AppendHistory 追加一条台账记录，回填自增 ID
func (s *Store) AppendHistory(ctx context.Context, entry *model.HistoryEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		metadataJSON = []byte(entry.Metadata)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	// PostgreSQL 支持 RETURNING，SQLite 走 LastInsertId
	if s.dialect.DriverType() == dbutil.DriverPostgres {
		query := s.rebind(`
			INSERT INTO mutation_history (mutation_id, campaign_id, action, actor, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
		`)
		return s.db.QueryRowContext(ctx, query,
			entry.MutationID, entry.CampaignID, entry.Action, entry.Actor, metadataJSON, entry.CreatedAt).
			Scan(&entry.ID)
	}

	query := s.rebind(`
		INSERT INTO mutation_history (mutation_id, campaign_id, action, actor, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	result, err := s.db.ExecContext(ctx, query,
		entry.MutationID, entry.CampaignID, entry.Action, entry.Actor, metadataJSON, entry.CreatedAt)
	if err != nil {
		return err
	}
	entry.ID, err = result.LastInsertId()
	return err
}

// ListHistoryByMutation 按写入顺序列出变异的台账记录
func (s *Store) ListHistoryByMutation(ctx context.Context, mutationID string, limit, offset int) ([]*model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.rebind(`SELECT ` + historyColumns + ` FROM mutation_history
			  WHERE mutation_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`)
	rows, err := s.db.QueryContext(ctx, query, mutationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryEntries(rows)
}

// ListHistoryByCampaign 按写入顺序列出活动的台账记录
func (s *Store) ListHistoryByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]*model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.rebind(`SELECT ` + historyColumns + ` FROM mutation_history
			  WHERE campaign_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`)
	rows, err := s.db.QueryContext(ctx, query, campaignID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryEntries(rows)
}

// scanHistoryEntries 批量扫描
func scanHistoryEntries(rows *sql.Rows) ([]*model.HistoryEntry, error) {
	var entries []*model.HistoryEntry
	for rows.Next() {
		entry := &model.HistoryEntry{}
		var metadataRaw *[]byte
		err := rows.Scan(
			&entry.ID, &entry.MutationID, &entry.CampaignID, &entry.Action,
			&entry.Actor, &metadataRaw, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		if metadataRaw != nil {
			entry.Metadata = json.RawMessage(*metadataRaw)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
