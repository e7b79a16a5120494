// Package model 定义核心数据模型
//
// genome.go 包含基因组相关的数据模型定义：
//   - Genome：可演化工件的当前状态
//   - GenomeStatus：基因组状态枚举
package model

import (
	"encoding/json"
	"time"
)

// ============================================================================
// GenomeStatus - 基因组状态
// ============================================================================

// GenomeStatus 表示基因组的生命周期状态
//
// 基因组由用户创建，只能通过"已接受的变异"演化，
// 被取代或退役后归档，永不物理删除：
//   - draft：草稿，尚未参与活动
//   - active：活跃，可被活动优化
//   - archived：已归档，只读
type GenomeStatus string

const (
	// GenomeStatusDraft 草稿
	GenomeStatusDraft GenomeStatus = "draft"

	// GenomeStatusActive 活跃
	GenomeStatusActive GenomeStatus = "active"

	// GenomeStatusArchived 已归档
	GenomeStatusArchived GenomeStatus = "archived"
)

// ============================================================================
// Genome - 可演化工件
// ============================================================================

// Genome 表示一个可演化工件的当前状态
//
// 不变式：
//   - 任一时刻只有一份"当前状态"（Data + Metrics + Version）
//   - 变异从不就地修改 Data，而是提出替换，在接受时原子换入
//   - Version 每次换入递增，供乐观并发控制（compare-and-swap）使用
//
// 字段说明：
//   - Data：工件内容，引擎视为不透明负载
//   - Metrics：最近一次测得的性能快照
//   - Version：当前状态版本号，CAS 的比较依据
//   - RepositoryURL：可选的外部仓库引用
type Genome struct {
	ID            string           `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	UserID        string           `json:"user_id" db:"user_id"`
	Data          json.RawMessage  `json:"data,omitempty" db:"data"`
	Metrics       *MetricsSnapshot `json:"metrics,omitempty" db:"metrics"`
	Status        GenomeStatus     `json:"status" db:"status"`
	Version       int64            `json:"version" db:"version"`
	RepositoryURL *string          `json:"repository_url,omitempty" db:"repository_url"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// IsMutable 判断基因组当前是否接受变异
func (g *Genome) IsMutable() bool {
	return g.Status == GenomeStatusActive
}
