package model

import "time"

// catalog.go 包含内容目录的数据模型定义：
//   - CatalogEntry：目录条目（楼盘、开发商、酒店、商场、地块、房源、博客共用一种文档形态）
//   - EntryStatus：条目发布状态枚举

// ============================================================================
// EntryStatus - 条目状态
// ============================================================================

// EntryStatus 目录条目的发布状态
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "draft"
	EntryStatusPublished EntryStatus = "published"
	EntryStatusArchived  EntryStatus = "archived"
)

// ============================================================================
// CatalogEntry - 目录条目
// ============================================================================

// CatalogEntry 内容目录条目
//
// 所有内容集合共用同一文档形态，集合间差异（价格、户型、开发商关联等）
// 放在 Details 自由字段中，由前端表单定义具体结构
type CatalogEntry struct {
	ID         string         `json:"id" bson:"_id"`
	Collection Collection     `json:"collection" bson:"collection"`
	Slug       string         `json:"slug" bson:"slug"` // 集合内唯一
	Title      string         `json:"title" bson:"title"`
	Summary    string         `json:"summary,omitempty" bson:"summary,omitempty"`
	Body       string         `json:"body,omitempty" bson:"body,omitempty"`
	Status     EntryStatus    `json:"status" bson:"status"`
	Images     []string       `json:"images,omitempty" bson:"images,omitempty"` // 对象存储 key 列表
	Details    map[string]any `json:"details,omitempty" bson:"details,omitempty"`

	CreatedBy string    `json:"created_by" bson:"created_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
