package storage

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestSetIfAbsent_MutualExclusion(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, "test:lock")

	ok, err := adapter.SetIfAbsent(ctx, "test:lock", "a", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	ok, err = adapter.SetIfAbsent(ctx, "test:lock", "b", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second acquire to fail")
	}

	if err := adapter.Delete(ctx, "test:lock"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	ok, _ = adapter.SetIfAbsent(ctx, "test:lock", "c", time.Minute)
	if !ok {
		t.Error("expected acquire to succeed after delete")
	}
	client.Del(ctx, "test:lock")
}

func TestSetIfAbsent_TTLExpiry(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, "test:ttl-lock")

	ok, err := adapter.SetIfAbsent(ctx, "test:ttl-lock", "a", 100*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire failed: ok=%v err=%v", ok, err)
	}

	time.Sleep(150 * time.Millisecond)

	ok, _ = adapter.SetIfAbsent(ctx, "test:ttl-lock", "b", time.Minute)
	if !ok {
		t.Error("expected acquire to succeed after expiry")
	}
	client.Del(ctx, "test:ttl-lock")
}

func TestGetSetExists(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, "test:kv")

	_, found, err := adapter.Get(ctx, "test:kv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected miss for absent key")
	}

	if err := adapter.Set(ctx, "test:kv", `{"status":"PAID"}`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, found, err := adapter.Get(ctx, "test:kv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || val != `{"status":"PAID"}` {
		t.Errorf("expected stored value, got found=%v val=%q", found, val)
	}

	exists, err := adapter.Exists(ctx, "test:kv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected key to exist")
	}
	client.Del(ctx, "test:kv")
}

func TestCounter_ConcurrentDecrement(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "test:counter")
	if err := adapter.Set(ctx, "test:counter", "100", 0); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := adapter.DecrementBy(ctx, "test:counter", 1); err != nil {
				t.Errorf("decrement failed: %v", err)
			}
		}()
	}
	wg.Wait()

	val, _, err := adapter.Get(ctx, "test:counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "0" {
		t.Errorf("expected counter 0 after 100 decrements, got %s", val)
	}

	if _, err := adapter.IncrementBy(ctx, "test:counter", 25); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	val, _, _ = adapter.Get(ctx, "test:counter")
	if val != "25" {
		t.Errorf("expected counter 25 after restore, got %s", val)
	}
	client.Del(ctx, "test:counter")
}
