package main // Entry point package

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/saas-access-core/internal/auth"
	"github.com/iliyamo/saas-access-core/internal/cache"
	"github.com/iliyamo/saas-access-core/internal/config"
	"github.com/iliyamo/saas-access-core/internal/database"
	"github.com/iliyamo/saas-access-core/internal/handler"
	"github.com/iliyamo/saas-access-core/internal/middleware"
	"github.com/iliyamo/saas-access-core/internal/queue"
	"github.com/iliyamo/saas-access-core/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	// Every shared handle is constructed here and torn down in reverse
	// order on shutdown; nothing initializes lazily on first use.
	primary, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open primary: %v", err)
	}
	defer primary.Close()

	replica, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.ReplicaHost, cfg.ReplicaPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open replica: %v", err)
	}
	defer replica.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	bundles := cache.New(rdb)
	defer bundles.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The consumer keeps the privilege cache warm; the resolver only reads it.
	go func() {
		if err := queue.StartPrivilegeConsumer(ctx, bundles, cfg.PrivilegeCacheTTL); err != nil && ctx.Err() == nil {
			log.Printf("privilege consumer stopped: %v", err)
		}
	}()

	decrypt, err := middleware.NewDecrypt(cfg.EncryptionKey, cfg.DecryptPaths)
	if err != nil {
		log.Fatalf("decrypt middleware: %v", err)
	}

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(decrypt) // encrypted-body paths are rewritten before routing-level middleware runs

	authenticator := auth.NewAuthenticator(cfg.JWTSecret)
	dataSession := middleware.DataSession(primary, replica, cfg.ReplicaRetryAttempts, cfg.ReplicaRetryBackoff)
	authenticate := middleware.Authenticate(authenticator, bundles)
	rateLimit := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, bundles), dataSession, authenticate, rateLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil {
			log.Printf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
