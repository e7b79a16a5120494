// Package redis CampaignEvents 事件总线操作
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"genome-engine/internal/shared/eventbus"
)

// PublishCampaignEvent 发布活动事件
func (s *Store) PublishCampaignEvent(ctx context.Context, campaignID string, event *eventbus.CampaignEvent) error {
	key := eventbus.KeyCampaignEvents + campaignID

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: key,
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"type":        event.Type,
			"mutation_id": event.MutationID,
			"timestamp":   event.Timestamp.Format(time.RFC3339Nano),
			"data":        string(dataJSON),
		},
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("[Redis/EventBus] Published event: campaign=%s id=%s type=%s", campaignID, id, event.Type)
	return nil
}

// GetCampaignEvents 获取活动事件列表
func (s *Store) GetCampaignEvents(ctx context.Context, campaignID string, fromID string, count int64) ([]*eventbus.CampaignEvent, error) {
	key := eventbus.KeyCampaignEvents + campaignID

	if fromID == "" {
		fromID = "0"
	}

	msgs, err := s.client.XRange(ctx, key, fromID, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	var events []*eventbus.CampaignEvent
	for _, msg := range msgs {
		events = append(events, decodeCampaignEvent(campaignID, msg))

		if count > 0 && int64(len(events)) >= count {
			break
		}
	}

	return events, nil
}

// GetCampaignEventCount 获取事件数量
func (s *Store) GetCampaignEventCount(ctx context.Context, campaignID string) (int64, error) {
	return s.client.XLen(ctx, eventbus.KeyCampaignEvents+campaignID).Result()
}

// SubscribeCampaignEvents 订阅活动事件
//
// 返回的 channel 在 ctx 取消或订阅出错时关闭，只投递订阅建立之后的新事件。
func (s *Store) SubscribeCampaignEvents(ctx context.Context, campaignID string) (<-chan *eventbus.CampaignEvent, error) {
	key := eventbus.KeyCampaignEvents + campaignID
	ch := make(chan *eventbus.CampaignEvent, 100)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() == nil {
					log.Printf("[Redis/EventBus] Event subscription error: %v", err)
				}
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					select {
					case ch <- decodeCampaignEvent(campaignID, msg):
						lastID = msg.ID
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// DeleteCampaignEvents 删除活动事件流
func (s *Store) DeleteCampaignEvents(ctx context.Context, campaignID string) error {
	return s.client.Del(ctx, eventbus.KeyCampaignEvents+campaignID).Err()
}

// decodeCampaignEvent 将 Stream 消息还原为事件
func decodeCampaignEvent(campaignID string, msg redis.XMessage) *eventbus.CampaignEvent {
	event := &eventbus.CampaignEvent{
		ID:         msg.ID,
		CampaignID: campaignID,
	}
	if t, ok := msg.Values["type"].(string); ok {
		event.Type = t
	}
	if mutationID, ok := msg.Values["mutation_id"].(string); ok {
		event.MutationID = mutationID
	}
	if ts, ok := msg.Values["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.Timestamp = t
		}
	}
	if dataStr, ok := msg.Values["data"].(string); ok && dataStr != "" && dataStr != "null" {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(dataStr), &data); err == nil {
			event.Data = data
		}
	}
	return event
}
