// Package storage 提供存储层抽象
//
// mock.go 提供用于测试的内存实现
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"estate-admin/internal/shared/model"
)

// MemStore 内存版 PersistentStore，仅用于测试
type MemStore struct {
	mu      sync.RWMutex
	users   map[string]*model.User         // id → user
	entries map[string]*model.CatalogEntry // id → entry
	audits  []*model.AuditEvent
}

// NewMemStore 创建内存存储实例
func NewMemStore() *MemStore {
	return &MemStore{
		users:   make(map[string]*model.User),
		entries: make(map[string]*model.CatalogEntry),
	}
}

// ============================================================================
// UserStore
// ============================================================================

func (s *MemStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) mutateUser(id string, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) UpdateUserProfile(ctx context.Context, id, fullName, phone, avatarKey string) error {
	return s.mutateUser(id, func(u *model.User) {
		u.FullName = fullName
		u.Phone = phone
		u.AvatarKey = avatarKey
	})
}

func (s *MemStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.mutateUser(id, func(u *model.User) { u.PasswordHash = passwordHash })
}

func (s *MemStore) UpdateUserRole(ctx context.Context, id string, role model.FullRole, grants []model.CollectionGrant) error {
	return s.mutateUser(id, func(u *model.User) {
		u.FullRole = role
		u.CollectionPermissions = grants
		u.PermissionOverrides = nil
	})
}

func (s *MemStore) UpdateUserOverrides(ctx context.Context, id string, overrides []model.CollectionGrant) error {
	return s.mutateUser(id, func(u *model.User) { u.PermissionOverrides = overrides })
}

func (s *MemStore) UpdateUserStatus(ctx context.Context, id string, status model.UserStatus) error {
	return s.mutateUser(id, func(u *model.User) { u.Status = status })
}

func (s *MemStore) RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	return s.mutateUser(id, func(u *model.User) {
		u.LoginAttempts = attempts
		u.LockedUntil = lockedUntil
	})
}

func (s *MemStore) RecordLoginSuccess(ctx context.Context, id string, at time.Time, status model.UserStatus) error {
	return s.mutateUser(id, func(u *model.User) {
		u.LoginAttempts = 0
		u.LockedUntil = nil
		u.LastLoginAt = &at
		u.Status = status
	})
}

// ============================================================================
// CatalogStore
// ============================================================================

func (s *MemStore) CreateEntry(ctx context.Context, entry *model.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Collection == entry.Collection && e.Slug == entry.Slug {
			return ErrDuplicate
		}
	}
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *MemStore) GetEntry(ctx context.Context, collection model.Collection, id string) (*model.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok && e.Collection == collection {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) GetEntryBySlug(ctx context.Context, collection model.Collection, slug string) (*model.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Collection == collection && e.Slug == slug {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListEntries(ctx context.Context, collection model.Collection) ([]*model.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.CatalogEntry
	for _, e := range s.entries {
		if e.Collection == collection {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) UpdateEntry(ctx context.Context, entry *model.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; !ok {
		return ErrNotFound
	}
	cp := *entry
	cp.UpdatedAt = time.Now()
	s.entries[entry.ID] = &cp
	return nil
}

func (s *MemStore) DeleteEntry(ctx context.Context, collection model.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e.Collection == collection {
		delete(s.entries, id)
		return nil
	}
	return ErrNotFound
}

func (s *MemStore) SetEntryStatus(ctx context.Context, collection model.Collection, id string, status model.EntryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e.Collection == collection {
		e.Status = status
		e.UpdatedAt = time.Now()
		return nil
	}
	return ErrNotFound
}

// ============================================================================
// AuditStore
// ============================================================================

func (s *MemStore) RecordAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.audits = append(s.audits, &cp)
	return nil
}

func (s *MemStore) ListAuditEvents(ctx context.Context, limit int) ([]*model.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.AuditEvent, 0, len(s.audits))
	for i := len(s.audits) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		cp := *s.audits[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }
func (s *MemStore) Close() error                   { return nil }

// 确保 MemStore 实现了 PersistentStore 接口
var _ PersistentStore = (*MemStore)(nil)
