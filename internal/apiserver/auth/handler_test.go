package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estate-admin/internal/apiserver/session"
	"estate-admin/internal/permission"
	"estate-admin/internal/shared/cache"
	"estate-admin/internal/shared/model"
	"estate-admin/internal/shared/storage"
)

type handlerFixture struct {
	handler *Handler
	store   *storage.MemStore
	cfg     Config
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	cfg := testConfig()
	cfg.LockoutThreshold = 3
	cfg.LockoutDuration = 10 * time.Minute
	store := storage.NewMemStore()
	sessions := session.NewService(cache.NewMemCache(), NewVerifier(cfg), store, cfg.SessionTTL)
	return &handlerFixture{
		handler: NewHandler(store, sessions, cfg),
		store:   store,
		cfg:     cfg,
	}
}

func (f *handlerFixture) seedUser(t *testing.T, email, password string, status model.UserStatus) *model.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Now()
	u := &model.User{
		ID:                    generateID("usr"),
		ExternalID:            generateID("ext"),
		Email:                 email,
		FullName:              "Test User",
		PasswordHash:          hash,
		FullRole:              model.RoleAgent,
		Status:                status,
		CollectionPermissions: permission.DefaultGrants(model.RoleAgent),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := f.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func (f *handlerFixture) login(email, password string) *httptest.ResponseRecorder {
	body := `{"email":"` + email + `","password":"` + password + `"}`
	r := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.handler.Login(w, r)
	return w
}

// ============================================================================
// 登录
// ============================================================================

func TestLogin_Success(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedUser(t, "agent@example.com", "correct-pass", model.UserStatusActive)

	w := f.login("agent@example.com", "correct-pass")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.SessionToken == "" {
		t.Error("session_token missing")
	}
	if resp.User == nil || resp.User.Email != "agent@example.com" {
		t.Errorf("unexpected user: %+v", resp.User)
	}
	if resp.User.LastLoginAt == nil {
		t.Error("last_login_at should be set")
	}

	// 会话 cookie 随响应下发
	cookieSet := false
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie && c.Value == resp.SessionToken {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Error("session cookie not set")
	}

	// 签发的凭据可通过验证
	subject, err := NewVerifier(f.cfg).VerifyCredential(context.Background(), resp.SessionToken)
	if err != nil || subject != resp.User.ExternalID {
		t.Errorf("issued token invalid: subject=%q err=%v", subject, err)
	}
}

// 邮箱大小写不敏感
func TestLogin_EmailCaseInsensitive(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedUser(t, "agent@example.com", "correct-pass", model.UserStatusActive)

	w := f.login("Agent@Example.COM", "correct-pass")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// 首次成功登录把 invited 迁移到 active
func TestLogin_InvitedBecomesActive(t *testing.T) {
	f := newHandlerFixture(t)
	u := f.seedUser(t, "new@example.com", "initial-pass", model.UserStatusInvited)

	w := f.login("new@example.com", "initial-pass")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	stored, err := f.store.GetUserByID(context.Background(), u.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if stored.Status != model.UserStatusActive {
		t.Errorf("status = %s, want active", stored.Status)
	}
}

func TestLogin_Rejections(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedUser(t, "agent@example.com", "correct-pass", model.UserStatusActive)
	f.seedUser(t, "frozen@example.com", "correct-pass", model.UserStatusSuspended)
	f.seedUser(t, "gone@example.com", "correct-pass", model.UserStatusDeleted)

	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
		wantKind   string
	}{
		{"wrong password", "agent@example.com", "wrong", 401, "invalid_credentials"},
		{"unknown email", "nobody@example.com", "whatever", 401, "invalid_credentials"},
		// 软删除用户与不存在不可区分
		{"deleted user", "gone@example.com", "correct-pass", 401, "invalid_credentials"},
		{"suspended user", "frozen@example.com", "correct-pass", 403, "suspended"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.login(tt.email, tt.password)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]string
			json.Unmarshal(w.Body.Bytes(), &body)
			if body["error"] != tt.wantKind {
				t.Errorf("error = %q, want %q", body["error"], tt.wantKind)
			}
		})
	}
}

// 连续失败触发锁定；锁定期内正确密码也被拒
func TestLogin_LockoutFlow(t *testing.T) {
	f := newHandlerFixture(t)
	u := f.seedUser(t, "agent@example.com", "correct-pass", model.UserStatusActive)

	for i := 0; i < f.cfg.LockoutThreshold; i++ {
		w := f.login("agent@example.com", "wrong-pass")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, w.Code)
		}
	}

	stored, _ := f.store.GetUserByID(context.Background(), u.ID)
	if stored.LockedUntil == nil || !stored.Locked(time.Now()) {
		t.Fatal("account should be locked after threshold failures")
	}

	w := f.login("agent@example.com", "correct-pass")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("locked login: status = %d, want 401", w.Code)
	}
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != string(session.KindLocked) {
		t.Errorf("error = %q, want locked", body["error"])
	}
}

// 锁定到期后同一凭据即可登录，无需人工解锁
func TestLogin_LockExpiry(t *testing.T) {
	f := newHandlerFixture(t)
	u := f.seedUser(t, "agent@example.com", "correct-pass", model.UserStatusActive)

	past := time.Now().Add(-time.Minute)
	if err := f.store.RecordLoginFailure(context.Background(), u.ID, f.cfg.LockoutThreshold, &past); err != nil {
		t.Fatalf("RecordLoginFailure: %v", err)
	}

	w := f.login("agent@example.com", "correct-pass")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", w.Code, w.Body.String())
	}

	stored, _ := f.store.GetUserByID(context.Background(), u.ID)
	if stored.LoginAttempts != 0 || stored.LockedUntil != nil {
		t.Errorf("counters not cleared: attempts=%d locked_until=%v",
			stored.LoginAttempts, stored.LockedUntil)
	}
}

// 成功登录清零失败计数
func TestLogin_SuccessResetsFailures(t *testing.T) {
	f := newHandlerFixture(t)
	u := f.seedUser(t, "agent@example.com", "correct-pass", model.UserStatusActive)

	f.login("agent@example.com", "wrong-pass")
	f.login("agent@example.com", "wrong-pass")

	w := f.login("agent@example.com", "correct-pass")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	stored, _ := f.store.GetUserByID(context.Background(), u.ID)
	if stored.LoginAttempts != 0 {
		t.Errorf("login_attempts = %d, want 0", stored.LoginAttempts)
	}
	if stored.LockedUntil != nil {
		t.Error("locked_until should be cleared")
	}
}

// ============================================================================
// 登出与校验
// ============================================================================

func TestLogoutInvalidatesSession(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedUser(t, "agent@example.com", "correct-pass", model.UserStatusActive)

	var resp loginResponse
	json.Unmarshal(f.login("agent@example.com", "correct-pass").Body.Bytes(), &resp)

	// 预热缓存
	result := f.handler.sessions.Validate(context.Background(), resp.SessionToken)
	if !result.Valid {
		t.Fatalf("validate after login failed: %s", result.Kind)
	}

	r := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer "+resp.SessionToken)
	w := httptest.NewRecorder()
	f.handler.Logout(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	// 缓存条目已失效；凭据本身仍在有效期内，验证走全流程
	result = f.handler.sessions.Validate(context.Background(), resp.SessionToken)
	if result.Cached {
		t.Error("session should not be served from cache after logout")
	}

	// 登出响应清除 cookie
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie not cleared")
	}
}

func TestValidateEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedUser(t, "agent@example.com", "correct-pass", model.UserStatusActive)

	var resp loginResponse
	json.Unmarshal(f.login("agent@example.com", "correct-pass").Body.Bytes(), &resp)

	r := httptest.NewRequest("GET", "/api/v1/auth/validate", nil)
	r.Header.Set("Authorization", "Bearer "+resp.SessionToken)
	w := httptest.NewRecorder()
	f.handler.Validate(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result session.Result
	json.Unmarshal(w.Body.Bytes(), &result)
	if !result.Valid {
		t.Errorf("result = %+v, want valid", result)
	}

	// 无凭据 → 401 + 种类
	r = httptest.NewRequest("GET", "/api/v1/auth/validate", nil)
	w = httptest.NewRecorder()
	f.handler.Validate(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ============================================================================
// 密码修改
// ============================================================================

func TestChangePassword(t *testing.T) {
	f := newHandlerFixture(t)
	u := f.seedUser(t, "agent@example.com", "old-pass-123", model.UserStatusActive)

	body := `{"old_password":"old-pass-123","new_password":"new-pass-456"}`
	r := httptest.NewRequest("PUT", "/api/v1/auth/password", strings.NewReader(body))
	r = r.WithContext(WithUser(r.Context(), u))
	w := httptest.NewRecorder()
	f.handler.ChangePassword(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// 旧密码失效，新密码生效
	if f.login("agent@example.com", "old-pass-123").Code != http.StatusUnauthorized {
		t.Error("old password should be rejected")
	}
	if f.login("agent@example.com", "new-pass-456").Code != http.StatusOK {
		t.Error("new password should work")
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	f := newHandlerFixture(t)
	u := f.seedUser(t, "agent@example.com", "old-pass-123", model.UserStatusActive)

	body := `{"old_password":"not-the-old-one","new_password":"new-pass-456"}`
	r := httptest.NewRequest("PUT", "/api/v1/auth/password", strings.NewReader(body))
	r = r.WithContext(WithUser(r.Context(), u))
	w := httptest.NewRecorder()
	f.handler.ChangePassword(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ============================================================================
// 管理员引导
// ============================================================================

func TestEnsureAdminUser(t *testing.T) {
	store := storage.NewMemStore()

	// 未配置时跳过
	if err := EnsureAdminUser(store, "", ""); err != nil {
		t.Fatalf("unconfigured bootstrap should be a no-op: %v", err)
	}
	users, _ := store.ListUsers(context.Background())
	if len(users) != 0 {
		t.Fatalf("no user should be created, got %d", len(users))
	}

	if err := EnsureAdminUser(store, "Root@Example.com", "bootstrap-pass"); err != nil {
		t.Fatalf("EnsureAdminUser: %v", err)
	}
	admin, err := store.GetUserByEmail(context.Background(), "root@example.com")
	if err != nil || admin == nil {
		t.Fatalf("admin not created: %v", err)
	}
	if admin.FullRole != model.RoleSuperAdmin {
		t.Errorf("role = %s, want super_admin", admin.FullRole)
	}
	if len(admin.CollectionPermissions) != len(model.AllCollections) {
		t.Errorf("grants = %d, want %d", len(admin.CollectionPermissions), len(model.AllCollections))
	}

	// 幂等
	if err := EnsureAdminUser(store, "root@example.com", "bootstrap-pass"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	users, _ = store.ListUsers(context.Background())
	if len(users) != 1 {
		t.Errorf("users = %d, want 1", len(users))
	}
}
