// Package auth 用户认证：JWT 会话凭据、密码哈希、路由守卫
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"estate-admin/internal/apiserver/session"
	"estate-admin/internal/shared/cache"
	"estate-admin/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const ctxKeyUser contextKey = "auth_user"

// SessionCookie 会话凭据 cookie 名
const SessionCookie = "estate_session"

// Config 认证配置
type Config struct {
	JWTSecret        string        `yaml:"-"`                 // 只从 JWT_SECRET 环境变量读取
	SessionTTL       time.Duration `yaml:"session_ttl"`       // 会话凭据 + 缓存条目有效期
	LoginTimeout     time.Duration `yaml:"login_timeout"`     // 登录流程墙钟超时
	LockoutThreshold int           `yaml:"lockout_threshold"` // 连续失败次数上限
	LockoutDuration  time.Duration `yaml:"lockout_duration"`  // 锁定时长
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		JWTSecret:        "",
		SessionTTL:       cache.DefaultSessionTTL,
		LoginTimeout:     25 * time.Second,
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
	}
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT 会话凭据
// ============================================================================

// Claims JWT 声明；Subject 为用户的 ExternalID（身份源主体标识）
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// GenerateSessionToken 签发会话凭据
func GenerateSessionToken(cfg Config, externalID, email string, role model.FullRole) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.SessionTTL)),
		},
		Email: email,
		Role:  string(role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// Verifier JWT 实现的身份源：验证签名与有效期
type Verifier struct {
	cfg Config
}

// NewVerifier 创建凭据验证器
func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// VerifyCredential 实现 session.TokenVerifier
//
// 失败时返回 *session.VerifyError，种类可供调用方分支
func (v *Verifier) VerifyCredential(ctx context.Context, credential string) (string, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(v.cfg.JWTSecret), nil
	})
	if err != nil {
		return "", &session.VerifyError{Kind: classifyJWTError(err), Err: err}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", &session.VerifyError{Kind: session.KindMalformed, Err: errors.New("invalid token claims")}
	}
	return claims.Subject, nil
}

// classifyJWTError JWT 解析错误 → 验证错误种类
func classifyJWTError(err error) session.ErrorKind {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return session.KindExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return session.KindMalformed
	default:
		return session.KindVerificationFailed
	}
}

// 确保 Verifier 实现了 session.TokenVerifier 接口
var _ session.TokenVerifier = (*Verifier)(nil)

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithUser 将已验证的用户注入 context
//
// 守卫评估成功后注入完整类型化的 User 值，handler 不得自行重建
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// UserFrom 从 context 获取已验证的用户
func UserFrom(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxKeyUser).(*model.User)
	return user
}
