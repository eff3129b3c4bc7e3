package mongostore

import (
	"context"
	"time"

	"estate-admin/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "external_id", Value: externalID}})
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.User](ctx, s.col(ColUsers), bson.D{}, opts)
}

func (s *Store) UpdateUserProfile(ctx context.Context, id, fullName, phone, avatarKey string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "full_name", Value: fullName},
		{Key: "phone", Value: phone},
		{Key: "avatar_key", Value: avatarKey},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role model.FullRole, grants []model.CollectionGrant) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "full_role", Value: role},
		{Key: "collection_permissions", Value: grants},
		{Key: "permission_overrides", Value: []model.CollectionGrant{}},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) UpdateUserOverrides(ctx context.Context, id string, overrides []model.CollectionGrant) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "permission_overrides", Value: overrides},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) UpdateUserStatus(ctx context.Context, id string, status model.UserStatus) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "login_attempts", Value: attempts},
		{Key: "locked_until", Value: lockedUntil},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time, status model.UserStatus) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "login_attempts", Value: 0},
		{Key: "locked_until", Value: nil},
		{Key: "last_login_at", Value: at},
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now()},
	})
}
