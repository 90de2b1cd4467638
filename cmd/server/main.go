package main // Entry point package

import (
    "log" // Logging library

    "github.com/joho/godotenv"    // Loads .env files in development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/edition-registry/internal/allocator"
    "github.com/iliyamo/edition-registry/internal/config"
    "github.com/iliyamo/edition-registry/internal/database"
    "github.com/iliyamo/edition-registry/internal/handler"
    "github.com/iliyamo/edition-registry/internal/middleware"
    "github.com/iliyamo/edition-registry/internal/queue"
    "github.com/iliyamo/edition-registry/internal/repository"
    "github.com/iliyamo/edition-registry/internal/router"
    queue_publisher "github.com/iliyamo/edition-registry/internal/service"
)

func main() {
    // Load .env when present; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    repo := repository.NewAllocationRepo(db)
    alloc := allocator.New(repo, queue_publisher.NewPublisher(), cfg.EnforceCapacity)

    // Broker-delivered order events feed the same allocator as the
    // webhook ingress; the consumer reconnects forever on its own.
    go queue.StartOrderConsumer(alloc)

    // Redis is optional: without it the limiter and cache pass through.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and response cache disabled")
    }

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterWebhooks(e, handler.NewWebhookHandler(alloc), cfg.WebhookSecret,
        middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    router.RegisterPublic(e, handler.NewEditionHandler(repo),
        middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
    router.RegisterAdmin(e, handler.NewAuthHandler(cfg), handler.NewAdminHandler(alloc, repo), cfg.JWTSecret)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
