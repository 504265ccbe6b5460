package main

import (
	"context"
	"fmt"

	"lotero/internal/app"
	"lotero/internal/config"
	"lotero/internal/controllers"
	"lotero/internal/routes"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.SetupLogging(cfg.LogLevel)

	a, err := app.New(context.Background(), cfg, app.Options{})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer a.Close()

	// With redis available, syncs and backups go through the worker.
	var queue controllers.Enqueuer
	if cfg.RedisURL != "" {
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		queue = client
	}

	router := routes.SetupRouter(a, queue)

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := router.Run(serverAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
