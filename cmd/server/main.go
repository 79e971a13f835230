package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/checkout/internal/adapter/gateway"
	"github.com/rl1809/checkout/internal/adapter/handler"
	"github.com/rl1809/checkout/internal/adapter/storage"
	"github.com/rl1809/checkout/internal/config"
	"github.com/rl1809/checkout/internal/core/idempotency"
	"github.com/rl1809/checkout/internal/core/service"
	"github.com/rl1809/checkout/internal/core/stock"
)

func main() {
	godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, db, redisAdapter, mysqlAdapter); err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
		log.Println("seeded demo data")
	}

	// Resolve the stock strategy
	selector := stock.NewSelector(redisAdapter, mysqlAdapter)
	strategy, err := selector.Select(cfg.StockStrategy)
	if err != nil {
		log.Fatalf("invalid STOCK_STRATEGY %q", cfg.StockStrategy)
	}
	log.Printf("using stock strategy %s", strategy.Name())

	policy := service.PolicyWaitForResult
	if cfg.ContentionPolicy == "reject" {
		policy = service.PolicyRejectImmediately
	}

	portOne := gateway.NewPortOneClient(
		cfg.PortOneBaseURL, cfg.PortOneAPIKey, cfg.PortOneAPISecret,
		cfg.GatewayConnectTimeout, cfg.GatewayReadTimeout,
	)

	coordinator := idempotency.NewCoordinator(redisAdapter)
	paymentService := service.NewPaymentService(
		coordinator, portOne, mysqlAdapter, strategy, policy, cfg.CacheTerminalFailures,
	)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(paymentService, selector, mysqlAdapter, redisAdapter)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/payment/confirm", httpHandler.ConfirmPayment)
	mux.HandleFunc("/api/benchmark/stock", httpHandler.BenchmarkDecrease)
	mux.HandleFunc("/api/benchmark/stock/init", httpHandler.BenchmarkInit)
	mux.HandleFunc("/api/benchmark/stock/status", httpHandler.BenchmarkStatus)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

type demoProduct struct {
	id    string
	name  string
	price int64
	stock int64
}

func seedDemoData(ctx context.Context, db *sql.DB, cache *storage.RedisAdapter, store *storage.MySQLAdapter) error {
	products := []demoProduct{
		{id: "limited-sneaker", name: "Limited Edition Sneaker", price: 150, stock: 100},
		{id: "vintage-watch", name: "Vintage Watch", price: 500, stock: 5},
	}

	for _, p := range products {
		_, err := db.ExecContext(ctx, `
			INSERT INTO product (id, name, price, stock, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, NOW(), NOW())
			ON DUPLICATE KEY UPDATE id = id`,
			p.id, p.name, p.price, p.stock,
		)
		if err != nil {
			return err
		}

		key := stock.AtomicCounterKey(p.id)
		if err := cache.Set(ctx, key, strconv.FormatInt(p.stock, 10), 0); err != nil {
			return err
		}
		if err := store.InitSlots(ctx, p.id, p.stock); err != nil {
			return err
		}
	}
	return nil
}
