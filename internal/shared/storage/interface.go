// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在 repository/ 子包中，数据库差异由 dbutil.Dialect 屏蔽
//   - 初始化时通过依赖注入传入实现
//
// 约定：
//   - Get* 在实体不存在时返回 (nil, nil)
//   - 需要区分"不存在"与"状态不允许"的写操作返回 ErrNotFound / ErrConflict
package storage

import (
	"context"
	"encoding/json"
	"time"

	"genome-engine/internal/shared/model"
)

// GenomeStore 基因组存储接口
//
// CompareAndSwapGenome 是唯一的基因组状态换入入口：
// 乐观并发控制，版本不匹配时返回 ErrConflict，调用方负责重试或放弃。
type GenomeStore interface {
	CreateGenome(ctx context.Context, genome *model.Genome) error
	GetGenome(ctx context.Context, id string) (*model.Genome, error)
	ListGenomes(ctx context.Context, status string, limit, offset int) ([]*model.Genome, error)
	UpdateGenomeStatus(ctx context.Context, id string, status model.GenomeStatus) error

	// CompareAndSwapGenome 原子换入基因组当前状态
	// 仅当 version = expectedVersion 时写入 data/metrics 并将版本加一
	CompareAndSwapGenome(ctx context.Context, id string, expectedVersion int64, data json.RawMessage, metrics *model.MetricsSnapshot) error
}

// CampaignStore 活动存储接口
type CampaignStore interface {
	CreateCampaign(ctx context.Context, campaign *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, status string, limit, offset int) ([]*model.Campaign, error)
	ListCampaignsByGenome(ctx context.Context, genomeID string) ([]*model.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error
}

// CampaignRunStore 执行实例存储接口
type CampaignRunStore interface {
	CreateCampaignRun(ctx context.Context, run *model.CampaignRun) error
	GetCampaignRun(ctx context.Context, id string) (*model.CampaignRun, error)
	ListRunsByCampaign(ctx context.Context, campaignID string) ([]*model.CampaignRun, error)
	ListQueuedRuns(ctx context.Context, limit int) ([]*model.CampaignRun, error)
	ListStaleQueuedRuns(ctx context.Context, threshold time.Duration) ([]*model.CampaignRun, error)
	UpdateCampaignRunStatus(ctx context.Context, id string, status model.RunStatus, results *model.RunResults) error
}

// MutationStore 变异存储接口
type MutationStore interface {
	CreateMutation(ctx context.Context, mutation *model.Mutation) error
	GetMutation(ctx context.Context, id string) (*model.Mutation, error)
	ListMutationsByCampaign(ctx context.Context, campaignID string) ([]*model.Mutation, error)
	ListMutationsByGenome(ctx context.Context, genomeID string) ([]*model.Mutation, error)
	UpdateMutationStatus(ctx context.Context, id string, status model.MutationStatus) error
	SetMutationScores(ctx context.Context, id string, safety, confidence, composite float64) error
	MarkMutationApplied(ctx context.Context, id string, appliedBy string, appliedAt time.Time) error

	// MaxMutationSequence 返回活动内已分配的最大序号（无变异时为 0）
	MaxMutationSequence(ctx context.Context, campaignID string) (int, error)
}

// MutationTestStore 评估结果存储接口
type MutationTestStore interface {
	CreateMutationTest(ctx context.Context, test *model.MutationTest) error
	ListTestsByMutation(ctx context.Context, mutationID string) ([]*model.MutationTest, error)
}

// HistoryStore 审计台账存储接口
//
// 契约内只有追加和查询，不存在更新或删除操作。
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry *model.HistoryEntry) error
	ListHistoryByMutation(ctx context.Context, mutationID string, limit, offset int) ([]*model.HistoryEntry, error)
	ListHistoryByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]*model.HistoryEntry, error)
}

// SuggestionStore 建议存储接口
type SuggestionStore interface {
	CreateSuggestion(ctx context.Context, suggestion *model.Suggestion) error
	ListSuggestionsByGenome(ctx context.Context, genomeID string, status string) ([]*model.Suggestion, error)

	// UpdateSuggestionStatus 只允许 new → accepted/dismissed；
	// 建议已不是 new 时返回 ErrConflict
	UpdateSuggestionStatus(ctx context.Context, id string, status model.SuggestionStatus) error
}

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	GenomeStore
	CampaignStore
	CampaignRunStore
	MutationStore
	MutationTestStore
	HistoryStore
	SuggestionStore
	Close() error
}
