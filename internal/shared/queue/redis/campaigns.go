// Package redis CampaignRunQueue 操作
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"genome-engine/internal/shared/queue"
)

// ScheduleCampaignRun 将执行加入派发队列（等待控制器拾取）
func (s *Store) ScheduleCampaignRun(ctx context.Context, runID, campaignID string) (string, error) {
	args := &redis.XAddArgs{
		Stream: queue.KeyEngineRuns,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"run_id":      runID,
			"campaign_id": campaignID,
			"created_at":  time.Now().Format(time.RFC3339Nano),
		},
	}

	return s.client.XAdd(ctx, args).Result()
}

// CreateEngineConsumerGroup 创建控制器消费者组
func (s *Store) CreateEngineConsumerGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, queue.KeyEngineRuns, queue.EngineConsumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

// ConsumeCampaignRuns 消费派发队列中的执行
func (s *Store) ConsumeCampaignRuns(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*queue.CampaignRunMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    queue.EngineConsumerGroup,
		Consumer: consumerID,
		Streams:  []string{queue.KeyEngineRuns, ">"},
		Count:    count,
		Block:    blockTimeout,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var messages []*queue.CampaignRunMessage
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			m := &queue.CampaignRunMessage{
				ID: msg.ID,
			}
			if runID, ok := msg.Values["run_id"].(string); ok {
				m.RunID = runID
			}
			if campaignID, ok := msg.Values["campaign_id"].(string); ok {
				m.CampaignID = campaignID
			}
			if createdAt, ok := msg.Values["created_at"].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
					m.CreatedAt = t
				}
			}
			messages = append(messages, m)
		}
	}

	return messages, nil
}

// AckCampaignRun 确认执行派发消息已处理
func (s *Store) AckCampaignRun(ctx context.Context, messageID string) error {
	return s.client.XAck(ctx, queue.KeyEngineRuns, queue.EngineConsumerGroup, messageID).Err()
}

// GetCampaignQueueLength 获取派发队列长度
func (s *Store) GetCampaignQueueLength(ctx context.Context) (int64, error) {
	return s.client.XLen(ctx, queue.KeyEngineRuns).Result()
}

// GetCampaignPendingCount 获取未确认消息数量
func (s *Store) GetCampaignPendingCount(ctx context.Context) (int64, error) {
	pending, err := s.client.XPending(ctx, queue.KeyEngineRuns, queue.EngineConsumerGroup).Result()
	if err != nil {
		return 0, err
	}
	return pending.Count, nil
}
