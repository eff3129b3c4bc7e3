// Package session 会话验证服务
//
// 编排顺序：查缓存 → 未命中则验证凭据 → 加载本地用户 → 回填缓存。
// 缓存命中是主导延迟路径：一次缓存往返，零次身份源/数据库往返。
// 缓存不可用一律降级（读按未命中、写按空操作），绝不影响验证正确性；
// 身份源或数据库失败则验证按失败关闭（fail-closed），绝不误判为有效。
package session

import (
	"context"
	"errors"
	"time"

	"estate-admin/internal/shared/cache"
	"estate-admin/internal/shared/model"
	"estate-admin/pkg/logging"
)

// ============================================================================
// 错误种类
// ============================================================================

// ErrorKind 验证失败的种类，调用方按种类分支，不解析消息文本
type ErrorKind string

const (
	KindNoCredential       ErrorKind = "no_credential"
	KindExpired            ErrorKind = "expired"
	KindRevoked            ErrorKind = "revoked"
	KindMalformed          ErrorKind = "malformed"
	KindVerificationFailed ErrorKind = "verification_failed"
	KindNotFound           ErrorKind = "not_found"
	KindSuspended          ErrorKind = "suspended"
	KindLocked             ErrorKind = "locked"
	KindTimeout            ErrorKind = "timeout"
	KindDependencyFailure  ErrorKind = "dependency_failure"
)

// HTTPStatus 错误种类到 HTTP 状态码的映射
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindTimeout:
		return 408
	case KindDependencyFailure:
		return 500
	default:
		return 401
	}
}

// VerifyError 身份源验证失败，携带可分支的种类
type VerifyError struct {
	Kind ErrorKind
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// ============================================================================
// 依赖接口
// ============================================================================

// TokenVerifier 身份源抽象：验证凭据签名/有效期/吊销
//
// 失败时应返回 *VerifyError 以便调用方按种类分支
type TokenVerifier interface {
	VerifyCredential(ctx context.Context, credential string) (subjectID string, err error)
}

// UserLoader 本地用户加载（storage.UserStore 的只读子集）
type UserLoader interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
}

// ============================================================================
// Result - 验证结果
// ============================================================================

// Result 会话验证结果
type Result struct {
	Valid  bool        `json:"valid"`
	Kind   ErrorKind   `json:"error_kind,omitempty"`
	User   *model.User `json:"user,omitempty"`
	Cached bool        `json:"cached"`
}

func invalid(kind ErrorKind) *Result {
	return &Result{Valid: false, Kind: kind}
}

// ============================================================================
// Service - 会话验证服务
// ============================================================================

// Service 会话验证服务
//
// 缓存客户端显式注入、随服务生命周期管理（进程启动构造、关停释放），
// 不依赖任何进程级全局变量
type Service struct {
	cache    cache.SessionCache
	verifier TokenVerifier
	users    UserLoader
	ttl      time.Duration
	metrics  *Metrics
	logger   *logging.Logger
}

// NewService 创建会话验证服务
//
// ttl ≤ 0 时使用默认会话 TTL
func NewService(c cache.SessionCache, verifier TokenVerifier, users UserLoader, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = cache.DefaultSessionTTL
	}
	return &Service{
		cache:    c,
		verifier: verifier,
		users:    users,
		ttl:      ttl,
		metrics:  NewMetrics(),
		logger:   logging.Default("session"),
	}
}

// Metrics 返回服务的指标计数器
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// slowValidation 超过该阈值的验证记一条告警（通常意味着缓存或数据库变慢）
const slowValidation = 500 * time.Millisecond

// Validate 验证会话凭据
//
// 幂等、无用户记录写入（登录相关副作用属于登录流程），可安全地逐请求调用
func (s *Service) Validate(ctx context.Context, credential string) *Result {
	start := time.Now()
	result := s.validate(ctx, credential)
	elapsed := time.Since(start)
	s.metrics.RecordRequest(elapsed, result.Cached)
	if elapsed > slowValidation {
		s.logger.WithDuration(elapsed).Warn("slow session validation", "cached", result.Cached)
	}
	return result
}

func (s *Service) validate(ctx context.Context, credential string) *Result {
	if credential == "" {
		return invalid(KindNoCredential)
	}

	key := cache.SessionKey(credential)

	// 1. 查缓存；缓存故障按未命中降级
	entry, err := s.cache.GetSession(ctx, key)
	if err != nil {
		s.logger.Warn("session cache get failed, treating as miss", "error", err)
		entry = nil
	}
	if entry != nil {
		return &Result{Valid: true, User: entry.User(), Cached: true}
	}

	// 2. 未命中：身份源验证凭据
	subjectID, err := s.verifier.VerifyCredential(ctx, credential)
	if err != nil {
		return invalid(classifyVerifyError(ctx, err))
	}

	// 3. 加载本地用户：本地状态具有最终权威，可即时吊销上游仍有效的凭据
	user, err := s.users.GetUserByExternalID(ctx, subjectID)
	if err != nil {
		// 依赖失败按失败关闭处理，绝不误判为有效
		s.logger.Error("user lookup failed during validation", "error", err)
		return invalid(classifyDependencyError(ctx))
	}
	if user == nil || user.Status == model.UserStatusDeleted {
		return invalid(KindNotFound)
	}
	if user.Status == model.UserStatusSuspended {
		return invalid(KindSuspended)
	}

	// 4. 回填缓存；写失败按空操作降级
	if err := s.cache.SetSession(ctx, key, entryFromUser(user), s.ttl); err != nil {
		s.logger.Warn("session cache set failed, skipping", "error", err)
	}

	return &Result{Valid: true, User: user, Cached: false}
}

// Invalidate 使单个会话失效（登出）；缓存故障按空操作降级
func (s *Service) Invalidate(ctx context.Context, credential string) {
	if credential == "" {
		return
	}
	if err := s.cache.InvalidateSession(ctx, cache.SessionKey(credential)); err != nil {
		s.logger.Warn("session invalidate failed", "error", err)
	}
}

// InvalidateUser 使某用户全部会话失效（角色/状态/密码变更）
func (s *Service) InvalidateUser(ctx context.Context, userID string) {
	if err := s.cache.InvalidateUserSessions(ctx, userID); err != nil {
		s.logger.Warn("user session invalidate failed", "user_id", userID, "error", err)
	}
}

// ============================================================================
// 健康检查
// ============================================================================

// Health 缓存可达性与实测往返耗时（运维用途，不参与授权判定）
type Health struct {
	CacheReachable bool   `json:"cache_reachable"`
	CacheRTTMillis int64  `json:"cache_rtt_ms"`
	CacheError     string `json:"cache_error,omitempty"`
}

// CheckHealth 探测缓存健康状态
func (s *Service) CheckHealth(ctx context.Context) Health {
	rtt, err := s.cache.Ping(ctx)
	if err != nil {
		return Health{CacheReachable: false, CacheError: err.Error()}
	}
	return Health{CacheReachable: true, CacheRTTMillis: rtt.Milliseconds()}
}

// ============================================================================
// 内部工具
// ============================================================================

func entryFromUser(user *model.User) *cache.SessionEntry {
	return &cache.SessionEntry{
		UserID:                user.ID,
		Email:                 user.Email,
		FullRole:              user.FullRole,
		Status:                user.Status,
		CollectionPermissions: user.CollectionPermissions,
		PermissionOverrides:   user.PermissionOverrides,
		CachedAt:              time.Now(),
	}
}

// classifyVerifyError 身份源错误 → 错误种类
func classifyVerifyError(ctx context.Context, err error) ErrorKind {
	var verr *VerifyError
	if errors.As(err, &verr) {
		return verr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return KindTimeout
	}
	return KindVerificationFailed
}

// classifyDependencyError 数据库等依赖错误 → 错误种类
func classifyDependencyError(ctx context.Context) ErrorKind {
	if ctx.Err() != nil {
		return KindTimeout
	}
	return KindDependencyFailure
}
