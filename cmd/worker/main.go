package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lotero/internal/app"
	"lotero/internal/config"
	"lotero/internal/tasks"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	app.SetupLogging(cfg.LogLevel)

	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required for the worker")
	}

	a, err := app.New(context.Background(), cfg, app.Options{})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer a.Close()
	log.Println("Worker connected to database.")

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: a.Location})
	syncTask, err := tasks.NewSyncPrizesTask("schedule", false)
	if err != nil {
		log.Fatalf("Failed to create sync task: %v", err)
	}

	entryID, err := scheduler.Register(cfg.Sync.Cron, syncTask, asynq.Queue("default"))
	if err != nil {
		log.Fatalf("Failed to register periodic task: %v", err)
	}
	log.Printf("Registered periodic task: %s (EntryID: %s)", syncTask.Type(), entryID)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Queues: map[string]int{
				"default": 3,
			},
			// passes are serialized by the sync lock anyway
			Concurrency: 2,
		},
	)

	taskProcessor := tasks.NewTaskProcessor(a)

	mux := asynq.NewServeMux()
	taskProcessor.Register(mux)

	go func() {
		log.Println("Starting Asynq scheduler...")
		if err := scheduler.Run(); err != nil {
			log.Fatalf("Could not run Asynq scheduler: %v", err)
		}
	}()

	go func() {
		log.Println("Starting Asynq worker server...")
		if err := srv.Run(mux); err != nil {
			log.Fatalf("Could not run Asynq worker server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("Shutdown signal received, shutting down gracefully...")

	scheduler.Shutdown()
	log.Println("Asynq scheduler shut down.")

	srv.Shutdown()
	log.Println("Asynq worker server shut down.")

	log.Println("Worker process shut down complete.")
}
