package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"estate-admin/internal/shared/cache"
	"estate-admin/internal/shared/model"
)

// ============================================================================
// 测试桩
// ============================================================================

// stubVerifier 固定结果的身份源
type stubVerifier struct {
	subjectID string
	err       error
	calls     int
}

func (v *stubVerifier) VerifyCredential(ctx context.Context, credential string) (string, error) {
	v.calls++
	if v.err != nil {
		return "", v.err
	}
	return v.subjectID, nil
}

// stubLoader 固定结果的用户加载器
type stubLoader struct {
	user  *model.User
	err   error
	calls int
}

func (l *stubLoader) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	l.calls++
	return l.user, l.err
}

func activeUser() *model.User {
	return &model.User{
		ID:         "usr-001",
		ExternalID: "ext-001",
		Email:      "agent@example.com",
		FullRole:   model.RoleAgent,
		Status:     model.UserStatusActive,
		CollectionPermissions: []model.CollectionGrant{
			{Collection: model.CollectionProperties, SubRole: model.SubRoleContributor},
		},
	}
}

// ============================================================================
// Validate
// ============================================================================

func TestValidate_EmptyCredential(t *testing.T) {
	svc := NewService(cache.NewMemCache(), &stubVerifier{}, &stubLoader{}, time.Minute)
	result := svc.Validate(context.Background(), "")
	if result.Valid {
		t.Fatal("empty credential must be invalid")
	}
	if result.Kind != KindNoCredential {
		t.Errorf("Kind = %s, want %s", result.Kind, KindNoCredential)
	}
}

// 未命中走全流程并回填；第二次同凭据命中缓存且不再触碰身份源和数据库
func TestValidate_MissThenHit(t *testing.T) {
	verifier := &stubVerifier{subjectID: "ext-001"}
	loader := &stubLoader{user: activeUser()}
	svc := NewService(cache.NewMemCache(), verifier, loader, time.Minute)
	ctx := context.Background()

	first := svc.Validate(ctx, "token-abc")
	if !first.Valid {
		t.Fatalf("first validate failed: kind=%s", first.Kind)
	}
	if first.Cached {
		t.Error("first validate should be a cache miss")
	}
	if first.User == nil || first.User.ID != "usr-001" {
		t.Fatalf("unexpected user: %+v", first.User)
	}

	second := svc.Validate(ctx, "token-abc")
	if !second.Valid || !second.Cached {
		t.Fatalf("second validate should hit cache: valid=%v cached=%v", second.Valid, second.Cached)
	}
	if verifier.calls != 1 || loader.calls != 1 {
		t.Errorf("verifier/loader called %d/%d times, want 1/1", verifier.calls, loader.calls)
	}
	// 命中路径还原的用户携带完整授权
	if len(second.User.CollectionPermissions) != 1 {
		t.Errorf("cached user lost grants: %+v", second.User)
	}
}

// 幂等：同一凭据重复验证结果一致，且不产生用户记录写入
func TestValidate_Idempotent(t *testing.T) {
	verifier := &stubVerifier{subjectID: "ext-001"}
	loader := &stubLoader{user: activeUser()}
	svc := NewService(cache.NewMemCache(), verifier, loader, time.Minute)
	ctx := context.Background()

	var results []*Result
	for i := 0; i < 5; i++ {
		results = append(results, svc.Validate(ctx, "token-abc"))
	}
	for i, r := range results {
		if !r.Valid || r.User.ID != "usr-001" {
			t.Errorf("call %d: valid=%v user=%+v", i, r.Valid, r.User)
		}
	}
}

func TestValidate_VerifierErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"typed expired", &VerifyError{Kind: KindExpired, Err: errors.New("token is expired")}, KindExpired},
		{"typed malformed", &VerifyError{Kind: KindMalformed, Err: errors.New("token contains an invalid number of segments")}, KindMalformed},
		{"typed verification failed", &VerifyError{Kind: KindVerificationFailed, Err: errors.New("signature is invalid")}, KindVerificationFailed},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"opaque error", errors.New("boom"), KindVerificationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(cache.NewMemCache(), &stubVerifier{err: tt.err}, &stubLoader{}, time.Minute)
			result := svc.Validate(context.Background(), "token-abc")
			if result.Valid {
				t.Fatal("verification error must yield invalid result")
			}
			if result.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", result.Kind, tt.want)
			}
		})
	}
}

// 数据库失败按失败关闭：绝不误判为有效
func TestValidate_UserLoadFailureFailsClosed(t *testing.T) {
	loader := &stubLoader{err: errors.New("connection refused")}
	svc := NewService(cache.NewMemCache(), &stubVerifier{subjectID: "ext-001"}, loader, time.Minute)

	result := svc.Validate(context.Background(), "token-abc")
	if result.Valid {
		t.Fatal("dependency failure must fail closed")
	}
	if result.Kind != KindDependencyFailure {
		t.Errorf("Kind = %s, want %s", result.Kind, KindDependencyFailure)
	}
}

func TestValidate_UserStates(t *testing.T) {
	suspended := activeUser()
	suspended.Status = model.UserStatusSuspended
	deleted := activeUser()
	deleted.Status = model.UserStatusDeleted

	tests := []struct {
		name string
		user *model.User
		want ErrorKind
	}{
		{"unknown subject", nil, KindNotFound},
		{"deleted user", deleted, KindNotFound},
		{"suspended user", suspended, KindSuspended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(cache.NewMemCache(), &stubVerifier{subjectID: "ext-001"}, &stubLoader{user: tt.user}, time.Minute)
			result := svc.Validate(context.Background(), "token-abc")
			if result.Valid {
				t.Fatal("must be invalid")
			}
			if result.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", result.Kind, tt.want)
			}
		})
	}
}

// 缓存全灭时验证仍然正确，只是退化为全量验证
func TestValidate_CacheUnavailableDegrades(t *testing.T) {
	verifier := &stubVerifier{subjectID: "ext-001"}
	loader := &stubLoader{user: activeUser()}
	svc := NewService(cache.UnreachableCache{}, verifier, loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := svc.Validate(ctx, "token-abc")
		if !result.Valid {
			t.Fatalf("call %d: cache outage must not break validation: kind=%s", i, result.Kind)
		}
		if result.Cached {
			t.Errorf("call %d: nothing can be cached during outage", i)
		}
	}
	if verifier.calls != 3 {
		t.Errorf("each call should reach the verifier, got %d", verifier.calls)
	}
}

// 失效的会话条目不再被命中
func TestInvalidate(t *testing.T) {
	verifier := &stubVerifier{subjectID: "ext-001"}
	svc := NewService(cache.NewMemCache(), verifier, &stubLoader{user: activeUser()}, time.Minute)
	ctx := context.Background()

	svc.Validate(ctx, "token-abc")
	svc.Invalidate(ctx, "token-abc")

	result := svc.Validate(ctx, "token-abc")
	if result.Cached {
		t.Error("invalidated session must not be served from cache")
	}
	if verifier.calls != 2 {
		t.Errorf("verifier calls = %d, want 2", verifier.calls)
	}
}

func TestInvalidateUser(t *testing.T) {
	mem := cache.NewMemCache()
	svc := NewService(mem, &stubVerifier{subjectID: "ext-001"}, &stubLoader{user: activeUser()}, time.Minute)
	ctx := context.Background()

	// 同一用户两个并存会话
	svc.Validate(ctx, "token-1")
	svc.Validate(ctx, "token-2")
	if mem.Len() != 2 {
		t.Fatalf("expected 2 cached sessions, got %d", mem.Len())
	}

	svc.InvalidateUser(ctx, "usr-001")
	if mem.Len() != 0 {
		t.Errorf("expected 0 cached sessions after user invalidation, got %d", mem.Len())
	}
}

// 缓存故障时失效操作按空操作降级，不 panic 不阻塞
func TestInvalidate_CacheUnavailableNoop(t *testing.T) {
	svc := NewService(cache.UnreachableCache{}, &stubVerifier{}, &stubLoader{}, time.Minute)
	ctx := context.Background()
	svc.Invalidate(ctx, "token-abc")
	svc.InvalidateUser(ctx, "usr-001")
}

// ============================================================================
// 指标与健康检查
// ============================================================================

func TestValidate_RecordsMetrics(t *testing.T) {
	svc := NewService(cache.NewMemCache(), &stubVerifier{subjectID: "ext-001"}, &stubLoader{user: activeUser()}, time.Minute)
	ctx := context.Background()

	svc.Validate(ctx, "token-abc") // miss
	svc.Validate(ctx, "token-abc") // hit
	svc.Validate(ctx, "token-abc") // hit

	snap := svc.Metrics().Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", snap.TotalRequests)
	}
	if snap.CacheHits != 2 {
		t.Errorf("CacheHits = %d, want 2", snap.CacheHits)
	}
	if snap.HitRate < 0.66 || snap.HitRate > 0.67 {
		t.Errorf("HitRate = %f, want ~0.667", snap.HitRate)
	}
	if snap.AvgResponseMs < 0 {
		t.Errorf("AvgResponseMs = %f, must be non-negative", snap.AvgResponseMs)
	}
}

func TestErrorKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindNoCredential, 401},
		{KindExpired, 401},
		{KindRevoked, 401},
		{KindMalformed, 401},
		{KindVerificationFailed, 401},
		{KindNotFound, 401},
		{KindSuspended, 401},
		{KindLocked, 401},
		{KindTimeout, 408},
		{KindDependencyFailure, 500},
	}
	for _, tt := range tests {
		if got := tt.kind.HTTPStatus(); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestCheckHealth(t *testing.T) {
	healthy := NewService(cache.NewMemCache(), &stubVerifier{}, &stubLoader{}, time.Minute)
	h := healthy.CheckHealth(context.Background())
	if !h.CacheReachable {
		t.Error("MemCache should be reachable")
	}

	degraded := NewService(cache.UnreachableCache{}, &stubVerifier{}, &stubLoader{}, time.Minute)
	h = degraded.CheckHealth(context.Background())
	if h.CacheReachable {
		t.Error("UnreachableCache should report unreachable")
	}
	if h.CacheError == "" {
		t.Error("CacheError should carry the failure reason")
	}
}
