package mongostore

import (
	"context"

	"estate-admin/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// AuditStore
// ============================================================================

func (s *Store) RecordAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	return insertOne(ctx, s.col(ColAuditEvents), event)
}

func (s *Store) ListAuditEvents(ctx context.Context, limit int) ([]*model.AuditEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return findMany[model.AuditEvent](ctx, s.col(ColAuditEvents), bson.D{}, opts)
}
