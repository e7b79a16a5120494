// Package advisor 建议顾问
//
// 顾问扫描基因组最近完成的活动，从累计的变异结果里归纳前瞻性建议：
//   - 某变异类型长期零接受率 → 建议禁用该类型
//   - 被拒绝变异的综合得分逼近接受线 → 建议微调后重试（带模板补丁）
//
// 对基因组/变异只读；只写入新建议（同类建议按标题 UPSERT 去重），
// 建议的状态迁移由操作者通过 API 驱动，顾问从不回改。
package advisor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
)

// Config 顾问扫描参数
type Config struct {
	// CampaignWindow 纳入统计的最近完成活动数量
	CampaignWindow int

	// MinSamples 零接受率建议要求的最小尝试次数，
	// 样本太少时不下结论
	MinSamples int

	// NearMissEpsilon 近失判定容差：被拒绝变异的综合得分
	// 距离接受线不超过 ε 时视为近失
	NearMissEpsilon float64

	// ScanInterval 周期扫描间隔（Start 使用）
	ScanInterval time.Duration
}

// Validate 填充默认值
func (c *Config) Validate() {
	if c.CampaignWindow <= 0 {
		c.CampaignWindow = 5
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 5
	}
	if c.NearMissEpsilon <= 0 {
		c.NearMissEpsilon = 0.05
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = 30 * time.Minute
	}
}

// Advisor 建议顾问
type Advisor struct {
	store  storage.PersistentStore
	config *Config
}

// New 创建顾问
func New(store storage.PersistentStore, config *Config) *Advisor {
	if config == nil {
		config = &Config{}
	}
	config.Validate()
	return &Advisor{store: store, config: config}
}

// Start 周期扫描所有活跃基因组，阻塞直到 ctx 取消
func (a *Advisor) Start(ctx context.Context) {
	log.Printf("[advisor.start] interval=%s window=%d", a.config.ScanInterval, a.config.CampaignWindow)

	ticker := time.NewTicker(a.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[advisor.stop] reason=context_cancelled")
			return
		case <-ticker.C:
			a.scanAll(ctx)
		}
	}
}

func (a *Advisor) scanAll(ctx context.Context) {
	genomes, err := a.store.ListGenomes(ctx, string(model.GenomeStatusActive), 100, 0)
	if err != nil {
		log.Printf("[advisor.scan.failed] error=%v", err)
		return
	}
	for _, g := range genomes {
		if _, err := a.Scan(ctx, g.ID); err != nil {
			log.Printf("[advisor.scan.failed] genome_id=%s error=%v", g.ID, err)
		}
	}
}

// Scan 对单个基因组做一次扫描，返回本次写入（或刷新）的建议
func (a *Advisor) Scan(ctx context.Context, genomeID string) ([]*model.Suggestion, error) {
	genome, err := a.store.GetGenome(ctx, genomeID)
	if err != nil {
		return nil, fmt.Errorf("load genome %s: %w", genomeID, err)
	}
	if genome == nil {
		return nil, storage.ErrNotFound
	}

	campaigns, err := a.recentCompletedCampaigns(ctx, genomeID)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, nil
	}

	var suggestions []*model.Suggestion

	stats, nearMisses, err := a.collectOutcomes(ctx, campaigns)
	if err != nil {
		return nil, err
	}

	for mutationType, st := range stats {
		if st.tried < a.config.MinSamples || st.accepted > 0 {
			continue
		}
		suggestions = append(suggestions, a.disableTypeSuggestion(genomeID, mutationType, st))
	}
	for _, nm := range nearMisses {
		suggestions = append(suggestions, a.nearMissSuggestion(genomeID, nm))
	}

	for _, s := range suggestions {
		if err := a.store.CreateSuggestion(ctx, s); err != nil {
			return nil, fmt.Errorf("persist suggestion: %w", err)
		}
	}
	if len(suggestions) > 0 {
		log.Printf("[advisor.scan.done] genome_id=%s campaigns=%d suggestions=%d",
			genomeID, len(campaigns), len(suggestions))
	}
	return suggestions, nil
}

// recentCompletedCampaigns 最近 CampaignWindow 个已完成活动
//
// ListCampaignsByGenome 按创建时间降序返回，直接取前缀。
func (a *Advisor) recentCompletedCampaigns(ctx context.Context, genomeID string) ([]*model.Campaign, error) {
	all, err := a.store.ListCampaignsByGenome(ctx, genomeID)
	if err != nil {
		return nil, err
	}
	var completed []*model.Campaign
	for _, c := range all {
		if c.Status != model.CampaignStatusCompleted {
			continue
		}
		completed = append(completed, c)
		if len(completed) == a.config.CampaignWindow {
			break
		}
	}
	return completed, nil
}

// typeStats 变异类型在窗口内的累计结果
type typeStats struct {
	tried    int
	accepted int
}

// nearMiss 一次近失：被拒绝但得分逼近接受线的变异
type nearMiss struct {
	mutation  *model.Mutation
	threshold float64
	gap       float64
}

// collectOutcomes 汇总窗口内全部终态变异
//
// 接受线按活动近似：有变异被应用时取最低应用得分，
// 否则取活动配置对 min_improvement 的要求无从换算，跳过近失判定。
func (a *Advisor) collectOutcomes(ctx context.Context, campaigns []*model.Campaign) (map[string]*typeStats, []*nearMiss, error) {
	stats := make(map[string]*typeStats)
	var nearMisses []*nearMiss

	for _, campaign := range campaigns {
		mutations, err := a.store.ListMutationsByCampaign(ctx, campaign.ID)
		if err != nil {
			return nil, nil, err
		}

		threshold, hasThreshold := acceptanceThreshold(mutations)

		for _, m := range mutations {
			switch m.Status {
			case model.MutationStatusApplied:
				st := statsFor(stats, m.MutationType)
				st.tried++
				st.accepted++
			case model.MutationStatusRejected:
				st := statsFor(stats, m.MutationType)
				st.tried++
				if hasThreshold && m.CompositeScore != nil {
					gap := threshold - *m.CompositeScore
					if gap >= 0 && gap <= a.config.NearMissEpsilon {
						nearMisses = append(nearMisses, &nearMiss{mutation: m, threshold: threshold, gap: gap})
					}
				}
			case model.MutationStatusFailed:
				statsFor(stats, m.MutationType).tried++
			}
		}
	}
	return stats, nearMisses, nil
}

func statsFor(stats map[string]*typeStats, mutationType string) *typeStats {
	st, ok := stats[mutationType]
	if !ok {
		st = &typeStats{}
		stats[mutationType] = st
	}
	return st
}

// acceptanceThreshold 活动内实际生效过的接受线：最低应用得分
func acceptanceThreshold(mutations []*model.Mutation) (float64, bool) {
	threshold := 0.0
	found := false
	for _, m := range mutations {
		if m.Status != model.MutationStatusApplied || m.CompositeScore == nil {
			continue
		}
		if !found || *m.CompositeScore < threshold {
			threshold = *m.CompositeScore
			found = true
		}
	}
	return threshold, found
}

func (a *Advisor) disableTypeSuggestion(genomeID, mutationType string, st *typeStats) *model.Suggestion {
	priority := model.SuggestionPriorityMedium
	if st.tried >= a.config.MinSamples*3 {
		priority = model.SuggestionPriorityHigh
	}

	return &model.Suggestion{
		ID:             generateID("sug"),
		GenomeID:       genomeID,
		SuggestionType: model.SuggestionTypeDisableMutationType,
		Title:          fmt.Sprintf("Disable mutation type %q", mutationType),
		Description: fmt.Sprintf(
			"Mutation type %q was tried %d times across the last %d completed campaigns with zero acceptances. Consider removing it from the generator configuration.",
			mutationType, st.tried, a.config.CampaignWindow),
		// 样本越多结论越可信
		Confidence: float64(st.tried) / float64(st.tried+a.config.MinSamples),
		Priority:   priority,
		Status:     model.SuggestionStatusNew,
		CreatedAt:  time.Now(),
	}
}

func (a *Advisor) nearMissSuggestion(genomeID string, nm *nearMiss) *model.Suggestion {
	m := nm.mutation
	patch := m.MutatedCode

	return &model.Suggestion{
		ID:             generateID("sug"),
		GenomeID:       genomeID,
		SuggestionType: model.SuggestionTypeNearMiss,
		Title:          fmt.Sprintf("Retry near-miss mutation %s", m.ID),
		Description: fmt.Sprintf(
			"Mutation %s (%s) scored %.4f, within %.4f of the acceptance threshold %.4f. A tuned variant may clear the bar.",
			m.ID, m.MutationType, *m.CompositeScore, nm.gap, nm.threshold),
		TemplatePatch: &patch,
		Confidence:    1.0 - nm.gap/a.config.NearMissEpsilon,
		Priority:      model.SuggestionPriorityLow,
		Status:        model.SuggestionStatusNew,
		CreatedAt:     time.Now(),
	}
}

func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
