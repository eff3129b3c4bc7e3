package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFullRoleValid(t *testing.T) {
	for _, role := range AllFullRoles {
		assert.True(t, role.Valid(), "role %s", role)
	}
	assert.False(t, FullRole("superuser").Valid())
	assert.False(t, FullRole("").Valid())
}

func TestCollectionValid(t *testing.T) {
	for _, col := range AllCollections {
		assert.True(t, col.Valid(), "collection %s", col)
	}
	assert.False(t, Collection("gardens").Valid())
	assert.False(t, Collection("").Valid())
}

func TestSubRoleValid(t *testing.T) {
	for _, sr := range SubRolesAscending {
		assert.True(t, sr.Valid(), "sub-role %s", sr)
	}
	assert.False(t, SubRole("owner").Valid())
	assert.False(t, SubRole("").Valid())
}

func TestContentCollectionsExcludeAdministrative(t *testing.T) {
	assert.Len(t, ContentCollections, 7)
	assert.NotContains(t, ContentCollections, CollectionUsers)
	assert.NotContains(t, ContentCollections, CollectionSystem)
}

func TestUserLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	past := now.Add(-10 * time.Minute)

	tests := []struct {
		name        string
		lockedUntil *time.Time
		want        bool
	}{
		{"no lock", nil, false},
		{"lock in future", &future, true},
		{"lock expired", &past, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{LockedUntil: tt.lockedUntil}
			if got := u.Locked(now); got != tt.want {
				t.Errorf("Locked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserCanAuthenticate(t *testing.T) {
	tests := []struct {
		status UserStatus
		want   bool
	}{
		{UserStatusActive, true},
		{UserStatusInvited, true},
		{UserStatusSuspended, false},
		{UserStatusDeleted, false},
	}
	for _, tt := range tests {
		u := &User{Status: tt.status}
		if got := u.CanAuthenticate(); got != tt.want {
			t.Errorf("CanAuthenticate() with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// 密码散列永不出现在 JSON 序列化结果中
func TestUserJSONOmitsPasswordHash(t *testing.T) {
	u := &User{
		ID:           "usr-abc123def456",
		Email:        "agent@example.com",
		PasswordHash: "$2a$12$abcdefghijklmnopqrstuv",
		FullRole:     RoleAgent,
		Status:       UserStatusActive,
	}
	data, err := json.Marshal(u)
	assert.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "$2a$12$"), "password hash leaked: %s", data)
	assert.False(t, strings.Contains(string(data), "password_hash"))
}
