package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"vrhub/api/internal/account"
	"vrhub/api/internal/app"
	"vrhub/api/internal/auth"
	"vrhub/api/internal/blob"
	"vrhub/api/internal/config"
	"vrhub/api/internal/content"
	"vrhub/api/internal/notify"
	"vrhub/api/internal/search"
	"vrhub/api/internal/social"
	"vrhub/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if dir := filepath.Dir(cfg.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create data dir: %v", err)
		}
	}
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	var blobs blob.Store
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		blobs, err = blob.New(blob.Config{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UseSSL:          cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatalf("blob store failed: %v", err)
		}
	} else {
		log.Printf("No S3 endpoint configured, file endpoints disabled")
	}

	queue, err := notify.NewQueue(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	if queue != nil {
		log.Printf("Notification queue enabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewStoreScan(st))

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL, cfg.APITokenTTL)
	accounts := account.NewService(st, tokens, searchService)
	socialService := social.NewService(st, queue)
	contentService := content.NewService(st, blobs, searchService)

	srv := app.NewServer(accounts, socialService, contentService, tokens, blobs, searchService)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("VRHub API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
