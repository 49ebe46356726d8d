package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"users-api/core"
)

func main() {
	cfg := core.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		cfg, err = cfg.ApplyFile(path)
		if err != nil {
			log.Fatalf("failed to load config file: %v", err)
		}
	}
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	userRepo := core.NewPgUserRepository(db)
	tokens := core.NewTokenManager([]byte(cfg.TokenSecret))
	authService := core.NewRepositoryAuthService(userRepo, tokens)
	throttle := core.NewLoginThrottle(redisClient, cfg)
	metrics := core.NewAuthMetrics(redisClient)

	if err := core.BootstrapAdmin(ctx, userRepo, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	router := core.NewRouter(cfg, authService, tokens, userRepo, throttle, metrics)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
