package model

import "time"

// audit.go 包含安全审计事件的数据模型定义

// AuditOutcome 审计结果
type AuditOutcome string

const (
	AuditOutcomeDenied  AuditOutcome = "denied"
	AuditOutcomeAllowed AuditOutcome = "allowed"
)

// AuditEvent 安全审计事件
//
// 路由守卫在权限拒绝时记录：谁、在哪条路径上、尝试了什么操作、结果如何
type AuditEvent struct {
	ID         string           `json:"id" bson:"_id"`
	ActorID    string           `json:"actor_id" bson:"actor_id"`
	ActorEmail string           `json:"actor_email" bson:"actor_email"`
	ActorRole  FullRole         `json:"actor_role" bson:"actor_role"`
	Collection Collection       `json:"collection,omitempty" bson:"collection,omitempty"`
	Action     Action           `json:"action,omitempty" bson:"action,omitempty"`
	Capability SystemCapability `json:"capability,omitempty" bson:"capability,omitempty"`
	Outcome    AuditOutcome     `json:"outcome" bson:"outcome"`
	Method     string           `json:"method" bson:"method"`
	Path       string           `json:"path" bson:"path"`
	CreatedAt  time.Time        `json:"created_at" bson:"created_at"`
}
