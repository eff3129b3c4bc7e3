package mongostore

import (
	"context"
	"time"

	"estate-admin/internal/shared/model"
	"estate-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// CatalogStore
// ============================================================================
//
// 全部内容集合存在同一 Mongo collection 中，以 collection 字段区分；
// (collection, slug) 唯一索引保证 slug 在各自集合内唯一。

func catalogFilter(collection model.Collection, id string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "collection", Value: collection},
	}
}

func (s *Store) CreateEntry(ctx context.Context, entry *model.CatalogEntry) error {
	return insertOne(ctx, s.col(ColCatalog), entry)
}

func (s *Store) GetEntry(ctx context.Context, collection model.Collection, id string) (*model.CatalogEntry, error) {
	return findOne[model.CatalogEntry](ctx, s.col(ColCatalog), catalogFilter(collection, id))
}

func (s *Store) GetEntryBySlug(ctx context.Context, collection model.Collection, slug string) (*model.CatalogEntry, error) {
	return findOne[model.CatalogEntry](ctx, s.col(ColCatalog), bson.D{
		{Key: "collection", Value: collection},
		{Key: "slug", Value: slug},
	})
}

func (s *Store) ListEntries(ctx context.Context, collection model.Collection) ([]*model.CatalogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.CatalogEntry](ctx, s.col(ColCatalog), bson.D{{Key: "collection", Value: collection}}, opts)
}

func (s *Store) UpdateEntry(ctx context.Context, entry *model.CatalogEntry) error {
	entry.UpdatedAt = time.Now()
	return replaceByID(ctx, s.col(ColCatalog), entry.ID, entry)
}

func (s *Store) DeleteEntry(ctx context.Context, collection model.Collection, id string) error {
	return deleteOne(ctx, s.col(ColCatalog), catalogFilter(collection, id))
}

func (s *Store) SetEntryStatus(ctx context.Context, collection model.Collection, id string, status model.EntryStatus) error {
	res, err := s.col(ColCatalog).UpdateOne(ctx, catalogFilter(collection, id), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: status},
			{Key: "updated_at", Value: time.Now()},
		}},
	})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
