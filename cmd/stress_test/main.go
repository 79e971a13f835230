package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/checkout/internal/adapter/storage"
	"github.com/rl1809/checkout/internal/core/stock"
)

const (
	redisAddr     = "localhost:6379"
	mysqlDSN      = "root:root@tcp(localhost:3306)/checkout?parseTime=true"
	productID     = "limited-sneaker"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	strategyName := stock.NamePessimistic
	if len(os.Args) > 1 {
		strategyName = os.Args[1]
	}

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	cache := storage.NewRedisAdapter(rdb)
	store := storage.NewMySQLAdapter(db)

	// Reset stock for every strategy's backing state
	if err := store.SetProductStock(ctx, productID, initialStock); err != nil {
		log.Fatalf("failed to reset stock: %v", err)
	}
	if err := cache.Set(ctx, stock.AtomicCounterKey(productID), strconv.Itoa(initialStock), 0); err != nil {
		log.Fatalf("failed to reset counter: %v", err)
	}
	if err := store.InitSlots(ctx, productID, initialStock); err != nil {
		log.Fatalf("failed to reset slots: %v", err)
	}

	selector := stock.NewSelector(cache, store)
	strategy, err := selector.Select(strategyName)
	if err != nil {
		log.Fatalf("unknown strategy %q", strategyName)
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, err := strategy.Decrease(ctx, productID, 1)
			if err == nil && ok {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Strategy:         %s\n", strategy.Name())
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	product, err := store.GetProduct(ctx, productID)
	if err != nil || product == nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final DB Stock:    %d\n", product.Stock)

	// The mutex strategy fails fast on contention, so fewer than initialStock
	// successes are expected there; the total committed must never overdraw.
	if int64(success) <= initialStock && product.Stock == initialStock-int64(success) {
		fmt.Println("PASS: committed decrements match remaining stock")
	} else {
		fmt.Printf("FAIL: %d successes but %d stock remaining\n", success, product.Stock)
	}
}
