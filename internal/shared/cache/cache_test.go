package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-admin/internal/shared/model"
)

func TestSessionKey(t *testing.T) {
	key := SessionKey("some-bearer-token")

	// 前缀 + 64 位十六进制摘要
	assert.True(t, strings.HasPrefix(key, KeySession))
	assert.Len(t, strings.TrimPrefix(key, KeySession), 64)

	// 同一凭据稳定派生，不同凭据不碰撞
	assert.Equal(t, key, SessionKey("some-bearer-token"))
	assert.NotEqual(t, key, SessionKey("other-bearer-token"))

	// 凭据明文不出现在 key 中
	assert.False(t, strings.Contains(key, "some-bearer-token"))
}

func TestUserSessionsKey(t *testing.T) {
	assert.Equal(t, "user_sessions:usr-abc", UserSessionsKey("usr-abc"))
}

func TestSessionEntryUser(t *testing.T) {
	entry := &SessionEntry{
		UserID:   "usr-001",
		Email:    "agent@example.com",
		FullRole: model.RoleAgent,
		Status:   model.UserStatusActive,
		CollectionPermissions: []model.CollectionGrant{
			{Collection: model.CollectionProperties, SubRole: model.SubRoleContributor},
		},
		PermissionOverrides: []model.CollectionGrant{
			{Collection: model.CollectionBlogs, SubRole: model.SubRoleObserver},
		},
		CachedAt: time.Now(),
	}

	u := entry.User()
	require.NotNil(t, u)
	assert.Equal(t, "usr-001", u.ID)
	assert.Equal(t, model.RoleAgent, u.FullRole)
	assert.Equal(t, entry.CollectionPermissions, u.CollectionPermissions)
	assert.Equal(t, entry.PermissionOverrides, u.PermissionOverrides)
	assert.Empty(t, u.PasswordHash)
}

func TestMemCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemCache()
	key := SessionKey("token-1")

	got, err := c.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "miss should be nil, nil")

	entry := &SessionEntry{UserID: "usr-001", Email: "a@b.c", FullRole: model.RoleAgent}
	require.NoError(t, c.SetSession(ctx, key, entry, time.Minute))

	got, err = c.GetSession(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "usr-001", got.UserID)

	require.NoError(t, c.InvalidateSession(ctx, key))
	got, err = c.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemCache()
	key := SessionKey("token-ttl")

	entry := &SessionEntry{UserID: "usr-001"}
	require.NoError(t, c.SetSession(ctx, key, entry, 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	got, err := c.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry should be a miss")
}

func TestMemCacheInvalidateUserSessions(t *testing.T) {
	ctx := context.Background()
	c := NewMemCache()

	// 同一用户两个会话，另一用户一个
	require.NoError(t, c.SetSession(ctx, SessionKey("t1"), &SessionEntry{UserID: "usr-a"}, time.Minute))
	require.NoError(t, c.SetSession(ctx, SessionKey("t2"), &SessionEntry{UserID: "usr-a"}, time.Minute))
	require.NoError(t, c.SetSession(ctx, SessionKey("t3"), &SessionEntry{UserID: "usr-b"}, time.Minute))

	require.NoError(t, c.InvalidateUserSessions(ctx, "usr-a"))

	for _, token := range []string{"t1", "t2"} {
		got, err := c.GetSession(ctx, SessionKey(token))
		require.NoError(t, err)
		assert.Nil(t, got, "session %s should be gone", token)
	}
	got, err := c.GetSession(ctx, SessionKey("t3"))
	require.NoError(t, err)
	assert.NotNil(t, got, "other user's session must survive")
	assert.Equal(t, 1, c.Len())
}
