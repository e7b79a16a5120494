// Package history 审计台账记录器
//
// 台账是引擎的审计真相：每个状态迁移、每个负面结果都必须留下一条
// 只追加的记录，从不静默吞掉。记录器同时把动作投影到活动事件总线
// （总线可为 nil，投影是尽力而为，失败只记日志不影响台账写入）。
//
// 执行者身份通过 context 显式传递（WithActor），不使用环境全局状态。
package history

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"genome-engine/internal/shared/eventbus"
	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
)

// actorKey context 中执行者身份的键类型
type actorKey struct{}

// WithActor 在 context 中附加执行者身份
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom 取出执行者身份，未设置时返回 fallback
func ActorFrom(ctx context.Context, fallback string) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return fallback
}

// Recorder 台账记录器
type Recorder struct {
	store        storage.HistoryStore
	bus          eventbus.CampaignEventBus // 可为 nil
	defaultActor string
}

// NewRecorder 创建记录器
//
// bus 为 nil 时只写台账不投影事件。defaultActor 在 context 未携带
// 执行者身份时使用（系统组件名，如 "engine"）。
func NewRecorder(store storage.HistoryStore, bus eventbus.CampaignEventBus, defaultActor string) *Recorder {
	if defaultActor == "" {
		defaultActor = "engine"
	}
	return &Recorder{store: store, bus: bus, defaultActor: defaultActor}
}

// RecordMutation 记录一条变异级动作
func (r *Recorder) RecordMutation(ctx context.Context, campaignID, mutationID string, action model.HistoryAction, metadata map[string]interface{}) error {
	return r.record(ctx, campaignID, &mutationID, action, metadata)
}

// RecordCampaign 记录一条活动级动作（mutation_id 为空）
func (r *Recorder) RecordCampaign(ctx context.Context, campaignID string, action model.HistoryAction, metadata map[string]interface{}) error {
	return r.record(ctx, campaignID, nil, action, metadata)
}

func (r *Recorder) record(ctx context.Context, campaignID string, mutationID *string, action model.HistoryAction, metadata map[string]interface{}) error {
	var raw json.RawMessage
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		raw = data
	}

	entry := &model.HistoryEntry{
		MutationID: mutationID,
		CampaignID: campaignID,
		Action:     action,
		Actor:      ActorFrom(ctx, r.defaultActor),
		Metadata:   raw,
	}
	if err := r.store.AppendHistory(ctx, entry); err != nil {
		return err
	}

	r.publish(ctx, campaignID, mutationID, action, metadata)
	return nil
}

// PruneCampaignEvents 清空活动的事件流，尽力而为
//
// 新一次执行拾取前调用：上一次执行（崩溃或投递丢失后重试）留下的
// 投影对新订阅者是噪音。台账在 mutation_history 表里，不受影响。
func (r *Recorder) PruneCampaignEvents(ctx context.Context, campaignID string) {
	if r.bus == nil {
		return
	}

	count, err := r.bus.GetCampaignEventCount(ctx, campaignID)
	if err != nil {
		log.Printf("[history.prune.count.failed] campaign_id=%s error=%v", campaignID, err)
		return
	}
	if count == 0 {
		return
	}

	if err := r.bus.DeleteCampaignEvents(ctx, campaignID); err != nil {
		log.Printf("[history.prune.failed] campaign_id=%s error=%v", campaignID, err)
		return
	}
	log.Printf("[history.prune.done] campaign_id=%s dropped=%d", campaignID, count)
}

// publish 投影到事件总线，尽力而为
func (r *Recorder) publish(ctx context.Context, campaignID string, mutationID *string, action model.HistoryAction, metadata map[string]interface{}) {
	if r.bus == nil {
		return
	}

	event := &eventbus.CampaignEvent{
		CampaignID: campaignID,
		Type:       string(action),
		Timestamp:  time.Now(),
		Data:       metadata,
	}
	if mutationID != nil {
		event.MutationID = *mutationID
	}

	if err := r.bus.PublishCampaignEvent(ctx, campaignID, event); err != nil {
		log.Printf("[history.publish.failed] campaign_id=%s action=%s error=%v", campaignID, action, err)
	}
}
