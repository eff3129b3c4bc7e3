// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（configs/{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件或进程环境中（YAML 中不存储任何密码）。
//	JWT_SECRET、MONGO_ROOT_PASSWORD、REDIS_PASSWORD、MINIO_ROOT_USER、
//	MINIO_ROOT_PASSWORD、ADMIN_EMAIL、ADMIN_PASSWORD 均只从环境变量读取。
//
// 环境：
//   - 开发: APP_ENV=dev (默认) → configs/dev.yaml
//   - 测试: APP_ENV=test → configs/test.yaml
//   - 生产: APP_ENV=prod → /etc/estate-admin/prod.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test" // 测试环境（集成测试 + E2E 共用）
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server ServerConfig `yaml:"server"`
	Mongo  MongoConfig  `yaml:"mongo"`
	Redis  RedisConfig  `yaml:"redis"`
	MinIO  MinIOConfig  `yaml:"minio"`
	Auth   AuthConfig   `yaml:"auth"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type MongoConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 MONGO_ROOT_PASSWORD 环境变量读取
	Database string `yaml:"database"`
	URI      string `yaml:"uri"` // 直接指定 URI（优先于 host/port）
}

type RedisConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	DB             int    `yaml:"db"`
	Password       string `yaml:"-"`   // 只从 REDIS_PASSWORD 环境变量读取
	URL            string `yaml:"url"` // 直接指定 URL（优先于 host/port/db）
	CommandTimeout string `yaml:"command_timeout"` // 例如 "5s"
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// AuthConfig 认证配置
// 注意：JWTSecret/AdminEmail/AdminPassword 只从环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret        string `yaml:"-"`                 // 只从 JWT_SECRET 环境变量读取
	SessionTTL       string `yaml:"session_ttl"`       // 例如 "6h"
	LoginTimeout     string `yaml:"login_timeout"`     // 例如 "25s"
	LockoutThreshold int    `yaml:"lockout_threshold"` // 连续失败次数
	LockoutDuration  string `yaml:"lockout_duration"`  // 例如 "15m"
	AdminEmail       string `yaml:"-"`                 // 只从 ADMIN_EMAIL 环境变量读取
	AdminPassword    string `yaml:"-"`                 // 只从 ADMIN_PASSWORD 环境变量读取
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env                 Environment
	APIPort             string
	MongoURI            string
	MongoDatabase       string
	RedisURL            string
	RedisCommandTimeout time.Duration
	MinIO               MinIOConfig
	Auth                AuthConfig
	SessionTTL          time.Duration
	LoginTimeout        time.Duration
	LockoutDuration     time.Duration
}

// envSearchDirs .env 文件搜索目录（仅 dev/test 使用，生产环境由 systemd 注入）
var envSearchDirs = []string{
	".",
	"..",
	"../..",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖，构建最终配置
func Load() *Config {
	// 先读一次 APP_ENV 决定加载哪个 .env，再重新解析（.env 里可能声明 APP_ENV）
	loadEnvFiles(parseEnv(getEnv("APP_ENV", "dev")))
	env := parseEnv(getEnv("APP_ENV", "dev"))

	yamlCfg := loadYAMLConfig(env)

	// 敏感信息只从环境变量取
	yamlCfg.Mongo.Password = os.Getenv("MONGO_ROOT_PASSWORD")
	yamlCfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	yamlCfg.MinIO.AccessKey = os.Getenv("MINIO_ROOT_USER")
	yamlCfg.MinIO.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")
	yamlCfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	yamlCfg.Auth.AdminEmail = os.Getenv("ADMIN_EMAIL")
	yamlCfg.Auth.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	cfg := &Config{
		Env:                 env,
		APIPort:             getEnv("API_PORT", yamlCfg.Server.Port),
		MongoURI:            buildMongoURI(yamlCfg.Mongo),
		MongoDatabase:       yamlCfg.Mongo.Database,
		RedisURL:            buildRedisURL(yamlCfg.Redis),
		RedisCommandTimeout: parseDuration(yamlCfg.Redis.CommandTimeout, 5*time.Second),
		MinIO:               yamlCfg.MinIO,
		Auth:                yamlCfg.Auth,
		SessionTTL:          parseDuration(yamlCfg.Auth.SessionTTL, 6*time.Hour),
		LoginTimeout:        parseDuration(yamlCfg.Auth.LoginTimeout, 25*time.Second),
		LockoutDuration:     parseDuration(yamlCfg.Auth.LockoutDuration, 15*time.Minute),
	}
	return cfg
}

// configPathsForEnv 根据环境返回配置文件搜索路径
func configPathsForEnv(env Environment) []string {
	if env == EnvProduction {
		return []string{"/etc/estate-admin"}
	}
	// dev/test: 项目根目录的 configs/
	return []string{"configs", "../configs", "../../configs"}
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server: ServerConfig{Port: "8080"},
		Mongo:  MongoConfig{Host: "localhost", Port: 27017, Database: "estate_admin"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379, DB: 0, CommandTimeout: "5s"},
		MinIO:  MinIOConfig{Bucket: "estate-admin"},
		Auth: AuthConfig{
			SessionTTL:       "6h",
			LoginTimeout:     "25s",
			LockoutThreshold: 5,
			LockoutDuration:  "15m",
		},
	}

	paths := configPathsForEnv(env)
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		paths = []string{dir}
	}
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range paths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}
	return cfg
}

// loadEnvFiles 加载 .env 文件
//
// 生产环境不搜索 .env 文件（密码由 systemd EnvironmentFile 或 shell 环境注入）。
// godotenv.Load 不覆盖已有环境变量，优先级低于 shell 环境变量。
func loadEnvFiles(env Environment) {
	if env == EnvProduction {
		return
	}
	envFileName := fmt.Sprintf(".env.%s", string(env))
	for _, dir := range envSearchDirs {
		if err := godotenv.Load(filepath.Join(dir, envFileName)); err == nil {
			return
		}
	}
	for _, dir := range envSearchDirs {
		if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
			return
		}
	}
}

// buildMongoURI 构建 MongoDB 连接字符串，URI 优先
func buildMongoURI(m MongoConfig) string {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		return uri
	}
	if m.URI != "" {
		return m.URI
	}
	if m.User != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", m.User, m.Password, m.Host, m.Port)
	}
	return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
}

// buildRedisURL 构建 Redis 连接字符串，URL 优先
func buildRedisURL(r RedisConfig) string {
	if u := os.Getenv("REDIS_URL"); u != "" {
		return u
	}
	if r.URL != "" {
		return r.URL
	}
	if r.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", r.Password, r.Host, r.Port, r.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", r.Host, r.Port, r.DB)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration 解析时长字符串，空串或非法值回退默认
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Mongo: %s/%s, Redis: %s}",
		c.Env, maskPassword(c.MongoURI), c.MongoDatabase, maskPassword(c.RedisURL))
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:/@]*:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
