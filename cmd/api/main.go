package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/games-store/api/internal/cart"
	"github.com/games-store/api/internal/catalog"
	"github.com/games-store/api/internal/config"
	"github.com/games-store/api/internal/httpx"
	kafkax "github.com/games-store/api/internal/kafka"
	"github.com/games-store/api/internal/logging"
	"github.com/games-store/api/internal/orders"
	"github.com/games-store/api/internal/payments"
	"github.com/games-store/api/internal/postgres"
	"github.com/games-store/api/internal/redisx"
	"github.com/games-store/api/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("db migrate", "err", err)
		os.Exit(1)
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := &redisx.Cache{R: rdb}

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	svc := orders.NewService(postgres.NewStore(db))

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Svc: svc, Producer: prod, Cache: cache, Service: cfg.ServiceName}
	oh.Register(router)
	(&httpx.ProductsHandler{Repo: &catalog.Repo{DB: db}}).Register(router)
	(&httpx.UsersHandler{Repo: &users.Repo{DB: db, BcryptCost: cfg.BcryptCost}}).Register(router)
	(&httpx.CartHandler{Repo: &cart.Repo{DB: db}, Orders: oh}).Register(router)
	(&httpx.PaymentsHandler{Repo: &payments.Repo{DB: db}}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "err", err)
	}

	log.Info("shutting down")
	prod.Close()
	prod.WaitClosed()
}
