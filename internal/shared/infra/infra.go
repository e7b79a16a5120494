// Package infra 基础设施聚合层
//
// 提供统一的基础设施初始化和依赖注入，包括：
//   - Storage：持久化存储（SQLite/PostgreSQL）
//   - Queue：执行派发队列（Redis Streams）
//   - EventBus：活动事件总线（Redis Streams）
//   - ObjStore：变异工件归档（MinIO）
package infra

import (
	"genome-engine/internal/shared/eventbus"
	"genome-engine/internal/shared/objstore"
	"genome-engine/internal/shared/queue"
	"genome-engine/internal/shared/storage"
)

// Infrastructure 基础设施聚合结构
//
// Queue、EventBus、ObjStore 都可为 nil：队列缺失时引擎走保底轮询，
// 事件总线缺失时 WebSocket 降级为台账轮询，对象存储缺失时不归档。
type Infrastructure struct {
	// Storage 持久化存储
	Storage storage.PersistentStore

	// Queue 执行派发队列（Redis）
	Queue queue.Queue

	// EventBus 活动事件总线（Redis）
	EventBus eventbus.EventBus

	// ObjStore 变异工件归档（MinIO）
	ObjStore *objstore.Client
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var lastErr error

	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			lastErr = err
		}
	}

	if i.Queue != nil {
		if err := i.Queue.Close(); err != nil {
			lastErr = err
		}
	}

	if i.EventBus != nil {
		if err := i.EventBus.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// NewNoOpInfrastructure 创建空操作的基础设施（用于测试）
func NewNoOpInfrastructure() *Infrastructure {
	return &Infrastructure{
		Queue:    queue.NewNoOpQueue(),
		EventBus: eventbus.NewNoOpEventBus(),
	}
}
