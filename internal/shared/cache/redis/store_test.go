package redis

import (
	"testing"
	"time"
)

// Redis 不可达只降级不失败：构造必须成功，后续命令错误由调用方按未命中处理
func TestNewStoreFromURL_UnreachableServerDegrades(t *testing.T) {
	store, err := NewStoreFromURL("redis://127.0.0.1:1/0", time.Second)
	if err != nil {
		t.Fatalf("unreachable server should not fail construction: %v", err)
	}
	if store == nil {
		t.Fatal("store is nil")
	}
	store.Close()
}

func TestNewStoreFromURL_InvalidURL(t *testing.T) {
	if _, err := NewStoreFromURL("not-a-redis-url", time.Second); err == nil {
		t.Fatal("expected parse error")
	}
}
