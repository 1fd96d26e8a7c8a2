package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/reservation-engine/internal/availability"
	"github.com/iliyamo/reservation-engine/internal/booking"
	"github.com/iliyamo/reservation-engine/internal/catalog"
	"github.com/iliyamo/reservation-engine/internal/config"
	"github.com/iliyamo/reservation-engine/internal/database"
	"github.com/iliyamo/reservation-engine/internal/handler"
	"github.com/iliyamo/reservation-engine/internal/logger"
	"github.com/iliyamo/reservation-engine/internal/memstore"
	"github.com/iliyamo/reservation-engine/internal/obs"
	"github.com/iliyamo/reservation-engine/internal/pricing"
	"github.com/iliyamo/reservation-engine/internal/queue"
	"github.com/iliyamo/reservation-engine/internal/repository"
	"github.com/iliyamo/reservation-engine/internal/router"
	"github.com/iliyamo/reservation-engine/internal/scope"
	"github.com/iliyamo/reservation-engine/internal/service"
	"github.com/iliyamo/reservation-engine/internal/store"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.Init(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.App, lg *zap.Logger) error {
	shutdownTracer, err := obs.InitTracer(ctx, obs.Options{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Environment: cfg.Env,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		lg.Warn("redis unavailable: catalog cache, rate limiting and response cache disabled",
			zap.String("addr", cfg.Redis.Address()))
	} else {
		defer rdb.Close()
	}

	src, uow, db, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	guard := scope.NewGuard()
	cached := catalog.NewCached(src, rdb, cfg.CatalogCacheTTL, "catalog", lg)
	admin := catalog.NewAdmin(src, src, cached, guard, lg)
	ledger := availability.NewLedger(cached, uow, guard, availability.WithLogger(lg))

	deps := booking.Deps{
		Catalog: cached,
		Store:   uow,
		Ledger:  ledger,
		Pricing: pricing.New(cfg.Pricing.TaxRate),
		Guard:   guard,
		Logger:  lg,
	}
	if cfg.EventsEnabled {
		pub := service.NewPublisher(cfg.RabbitMQURL, cfg.EventsExchange, lg)
		defer pub.Close()
		deps.Events = pub
	}
	mgr := booking.NewManager(deps)

	if cfg.EventsEnabled {
		startConsumers(ctx, cfg, mgr, rdb, lg)
	}

	ready := map[string]handler.Pinger{}
	if db != nil {
		ready["mysql"] = db
	}
	if rdb != nil {
		ready["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	e := router.New(router.Deps{
		Config:       cfg,
		Redis:        rdb,
		Bookings:     handler.NewBookingHandler(mgr),
		Availability: handler.NewAvailabilityHandler(ledger),
		Resources:    handler.NewResourceHandler(cached, admin),
		Ready:        handler.Ready(ready),
	})

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// catalogSource is the uncached catalog of the configured driver.
type catalogSource interface {
	catalog.Catalog
	catalog.Editor
}

// openStore returns the catalog and unit of work for the configured
// driver.  db is nil for the memory driver.
func openStore(ctx context.Context, cfg config.App, lg *zap.Logger) (catalogSource, store.UnitOfWork, *sql.DB, error) {
	if cfg.StoreDriver == "memory" {
		ms := memstore.New()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return nil, nil, nil, err
			}
			defer f.Close()
			n, m, err := ms.Seed(f)
			if err != nil {
				return nil, nil, nil, err
			}
			lg.Info("memory store seeded", zap.Int("resources", n), zap.Int("items", m))
		}
		return ms, ms, nil, nil
	}

	db, err := database.Open(database.Options{
		User:     cfg.DB.User,
		Pass:     cfg.DB.Pass,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		Name:     cfg.DB.Name,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
	}
	return repository.NewCatalogRepo(db), repository.NewStore(db), db, nil
}

func startConsumers(ctx context.Context, cfg config.App, mgr *booking.Manager, rdb *redis.Client, lg *zap.Logger) {
	bookingLog := queue.NewBookingLog(cfg.BookingLogDir)
	go func() {
		_ = queue.Run(ctx, queue.Subscription{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.EventsExchange,
			Queue:    "reservation.booking-log",
			Keys:     queue.BookingLogKeys,
		}, bookingLog.Handle, lg)
	}()

	payments := queue.NewPaymentHandler(mgr, rdb, 24*time.Hour, lg)
	go func() {
		_ = queue.Run(ctx, queue.Subscription{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.PaymentExchange,
			Queue:    cfg.PaymentQueue,
			Keys:     []string{cfg.PaymentRoutingKey},
		}, payments.Handle, lg)
	}()
}
