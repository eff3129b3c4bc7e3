// Package redis Redis 缓存实现
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store Redis 缓存存储
type Store struct {
	client     *redis.Client
	cmdTimeout time.Duration
}

// NewStore 创建 Redis 缓存实例
//
// Redis 不可达不算构造失败：会话验证把缓存错误当作未命中处理，
// 服务以全量验签的降级模式继续运行，Redis 恢复后自动回到缓存路径
func NewStore(addr, password string, db int, cmdTimeout time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingOnStartup(client, addr)
	return &Store{client: client, cmdTimeout: cmdTimeout}, nil
}

// NewStoreFromURL 从 URL 创建 Redis 缓存实例；仅 URL 解析失败返回错误
func NewStoreFromURL(redisURL string, cmdTimeout time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingOnStartup(client, opts.Addr)
	return &Store{client: client, cmdTimeout: cmdTimeout}, nil
}

// pingOnStartup 启动时探测一次，只决定日志内容，不决定成败
func pingOnStartup(client *redis.Client, addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[Redis/Cache] Redis unreachable at %s, session cache degraded: %v", addr, err)
		return
	}
	log.Printf("[Redis/Cache] Connected to %s", addr)
}

// NewStoreFromClient 从现有 Redis 客户端创建缓存实例
func NewStoreFromClient(client *redis.Client, cmdTimeout time.Duration) *Store {
	return &Store{client: client, cmdTimeout: cmdTimeout}
}

// withTimeout 给单条命令加超时上限
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cmdTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cmdTimeout)
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 Redis 客户端
func (s *Store) Client() *redis.Client {
	return s.client
}
