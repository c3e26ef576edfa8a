package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clanelo/internal/api/handlers"
	"clanelo/internal/config"
	"clanelo/internal/jobs"
	"clanelo/internal/lock"
	"clanelo/internal/repository"
	"clanelo/internal/service"
	"clanelo/internal/websocket"
	"clanelo/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	cfg.SetupLogger()

	db, err := repository.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}

	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	log.Info().Str("addr", cfg.GetRedisAddr()).Msg("connected to Redis")

	ledgerRepo := repository.NewLedgerRepository(db)
	redisRepo := repository.NewRedisRepository(redisClient)

	if err := ledgerRepo.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("database migrations completed")

	// Worker pool projecting committed ratings into the Redis leaderboard
	workerPool := worker.NewWorkerPool(cfg.Worker.Count, cfg.Worker.QueueSize, redisRepo)
	workerPool.Start()

	var locker lock.Locker = lock.NewLocal(cfg.Lock.Wait)
	if cfg.Lock.Backend == "redis" {
		locker = lock.NewRedis(redisClient, cfg.Lock.TTL, cfg.Lock.Wait)
	}

	engine := service.NewEngine(ledgerRepo, locker, workerPool, service.Options{
		AutoRecalculate: cfg.Engine.AutoRecalculate,
		BatchSize:       cfg.Engine.BatchSize,
	})
	leaderboardService := service.NewLeaderboardService(redisRepo, ledgerRepo)

	hub := websocket.NewHub(redisRepo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	recalcJobs := jobs.NewRecalcManager(engine, hub, leaderboardService)

	// Rebuild the projection from committed ratings
	if err := leaderboardService.SyncRedisFromDatabase(ctx); err != nil {
		log.Warn().Err(err).Msg("initial leaderboard sync failed")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Clan Elo Rating Engine",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.Register(app, handlers.Handlers{
		Matches:     handlers.NewMatchHandler(engine),
		Recalc:      handlers.NewRecalcHandler(recalcJobs),
		Leaderboard: handlers.NewLeaderboardHandler(leaderboardService, hub),
		Admin:       handlers.NewAdminHandler(engine),
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Clan Elo Rating Engine API",
			"version": "1.0.0",
			"engine": fiber.Map{
				"auto_recalculate": cfg.Engine.AutoRecalculate,
				"lock_backend":     cfg.Lock.Backend,
			},
			"websocket_clients": hub.GetClientCount(),
			"projection":        workerPool.GetMetrics(),
		})
	})

	// Graceful shutdown: stop jobs, stop HTTP, flush projection writes, close stores
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info().Msg("shutting down server")

		// A running recalculation rolls back
		recalcJobs.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}

		if err := workerPool.Shutdown(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("worker pool shutdown error")
		}

		cancel()
		if err := ledgerRepo.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database")
		}
		if err := redisRepo.Close(); err != nil {
			log.Error().Err(err).Msg("error closing Redis")
		}

		log.Info().Msg("server shutdown complete")
	}()

	port := cfg.Server.Port
	log.Info().Int("port", port).Msg("server starting")
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

// initRedis initializes Redis connection with connection pooling
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   "Request failed",
		"message": err.Error(),
	})
}
