// Package main 后台管理服务入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estate-admin/internal/apiserver/auth"
	"estate-admin/internal/apiserver/server"
	"estate-admin/internal/config"
	cacheredis "estate-admin/internal/shared/cache/redis"
	"estate-admin/internal/shared/objstore"
	"estate-admin/internal/shared/storage/mongostore"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换 YAML）
	cfg := config.Load()

	log.Printf("Starting Admin Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// 初始化 MongoDB（用户、内容目录、审计）
	store, err := mongostore.NewStore(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	// 初始化 Redis（会话缓存）
	// Redis 不可达时不退出：会话验证降级为全量验签，仍然可用
	sessionCache, err := cacheredis.NewStoreFromURL(cfg.RedisURL, cfg.RedisCommandTimeout)
	if err != nil {
		log.Fatalf("Invalid Redis URL: %v", err)
	}
	defer sessionCache.Close()
	log.Println("Session cache initialized (Redis)")

	// 初始化 MinIO（图文素材，可选）
	var media *objstore.Client
	if cfg.MinIO.Endpoint != "" {
		media, err = objstore.NewClient(cfg.MinIO)
		if err != nil {
			log.Fatalf("Failed to create MinIO client: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := media.EnsureBucket(ctx); err != nil {
			log.Printf("MinIO bucket check failed, media endpoints degraded: %v", err)
			media = nil
		}
		cancel()
	} else {
		log.Println("MinIO not configured, media endpoints disabled")
	}

	authCfg := auth.Config{
		JWTSecret:        cfg.Auth.JWTSecret,
		SessionTTL:       cfg.SessionTTL,
		LoginTimeout:     cfg.LoginTimeout,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  cfg.LockoutDuration,
	}

	// 引导超级管理员账户（ADMIN_EMAIL/ADMIN_PASSWORD 环境变量，幂等）
	if err := auth.EnsureAdminUser(store, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	h := server.NewHandler(store, sessionCache, authCfg, media)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Admin Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
