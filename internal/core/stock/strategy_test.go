package stock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/testutil"
)

const testProductID = "prod-1"

func seedStock(t *testing.T, stock int64) *testutil.MemStock {
	t.Helper()
	db := testutil.NewMemStock()
	db.AddProduct(domain.Product{ID: testProductID, Name: "Limited Edition Sneaker", Price: 150, Stock: stock})
	return db
}

func TestPessimisticLock_Decrease(t *testing.T) {
	db := seedStock(t, 10)
	s := NewPessimisticLock(db)
	ctx := context.Background()

	ok, err := s.Decrease(ctx, testProductID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := db.GetProduct(ctx, testProductID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Stock)
}

func TestPessimisticLock_InsufficientStock(t *testing.T) {
	db := seedStock(t, 2)
	s := NewPessimisticLock(db)
	ctx := context.Background()

	ok, err := s.Decrease(ctx, testProductID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	p, _ := db.GetProduct(ctx, testProductID)
	assert.Equal(t, int64(2), p.Stock, "refused decrement must not change stock")
}

func TestPessimisticLock_ConcurrentNoOverdraw(t *testing.T) {
	db := seedStock(t, 20)
	s := NewPessimisticLock(db)
	ctx := context.Background()

	var success atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Decrease(ctx, testProductID, 1)
			assert.NoError(t, err)
			if ok {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	p, _ := db.GetProduct(ctx, testProductID)
	assert.Equal(t, int64(20), success.Load())
	assert.Equal(t, int64(0), p.Stock)
}

func TestDistributedMutex_Decrease(t *testing.T) {
	db := seedStock(t, 10)
	cache := testutil.NewMemCache()
	s := NewDistributedMutex(cache, db)
	ctx := context.Background()

	ok, err := s.Decrease(ctx, testProductID, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	p, _ := db.GetProduct(ctx, testProductID)
	assert.Equal(t, int64(6), p.Stock)

	held, _ := cache.Exists(ctx, mutexPrefix+testProductID)
	assert.False(t, held, "mutex must be released after the decrement")
}

func TestDistributedMutex_FailFastOnContention(t *testing.T) {
	db := seedStock(t, 10)
	cache := testutil.NewMemCache()
	s := NewDistributedMutex(cache, db)
	ctx := context.Background()

	// another holder owns the product mutex
	acquired, err := cache.SetIfAbsent(ctx, mutexPrefix+testProductID, "locked", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	ok, err := s.Decrease(ctx, testProductID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "contention refuses instead of waiting")

	p, _ := db.GetProduct(ctx, testProductID)
	assert.Equal(t, int64(10), p.Stock)
}

func TestDistributedMutex_InsufficientStock(t *testing.T) {
	db := seedStock(t, 1)
	cache := testutil.NewMemCache()
	s := NewDistributedMutex(cache, db)
	ctx := context.Background()

	ok, err := s.Decrease(ctx, testProductID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	held, _ := cache.Exists(ctx, mutexPrefix+testProductID)
	assert.False(t, held, "mutex must be released on refusal too")
}

func TestDistributedMutex_UnknownProduct(t *testing.T) {
	db := testutil.NewMemStock()
	s := NewDistributedMutex(testutil.NewMemCache(), db)

	_, err := s.Decrease(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestAtomicCounterSync_Decrease(t *testing.T) {
	db := seedStock(t, 10)
	cache := testutil.NewMemCache()
	require.NoError(t, cache.Set(context.Background(), AtomicCounterKey(testProductID), "10", 0))
	s := NewAtomicCounterSync(cache, db)
	ctx := context.Background()

	ok, err := s.Decrease(ctx, testProductID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	p, _ := db.GetProduct(ctx, testProductID)
	assert.Equal(t, int64(7), p.Stock)
	assertCounter(t, cache, 7)
}

func TestAtomicCounterSync_RestoreOnNegative(t *testing.T) {
	db := seedStock(t, 2)
	cache := testutil.NewMemCache()
	require.NoError(t, cache.Set(context.Background(), AtomicCounterKey(testProductID), "2", 0))
	s := NewAtomicCounterSync(cache, db)
	ctx := context.Background()

	ok, err := s.Decrease(ctx, testProductID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// counter went to -1 and must be put back
	assertCounter(t, cache, 2)
	p, _ := db.GetProduct(ctx, testProductID)
	assert.Equal(t, int64(2), p.Stock)
}

func TestAtomicCounterSync_RestoreOnReconcileRefusal(t *testing.T) {
	// counter says stock remains but the durable store disagrees
	db := seedStock(t, 0)
	cache := testutil.NewMemCache()
	require.NoError(t, cache.Set(context.Background(), AtomicCounterKey(testProductID), "5", 0))
	s := NewAtomicCounterSync(cache, db)

	ok, err := s.Decrease(context.Background(), testProductID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assertCounter(t, cache, 5)
}

func TestAtomicCounterSync_RestoreOnReconcileError(t *testing.T) {
	db := seedStock(t, 10)
	db.FailDecrementLocked = errors.New("db down")
	cache := testutil.NewMemCache()
	require.NoError(t, cache.Set(context.Background(), AtomicCounterKey(testProductID), "10", 0))
	s := NewAtomicCounterSync(cache, db)

	ok, err := s.Decrease(context.Background(), testProductID, 1)
	assert.Error(t, err)
	assert.False(t, ok)
	assertCounter(t, cache, 10)
}

func assertCounter(t *testing.T, cache *testutil.MemCache, want int64) {
	t.Helper()
	v, found, err := cache.Get(context.Background(), AtomicCounterKey(testProductID))
	require.NoError(t, err)
	require.True(t, found)
	got, err := strconv.ParseInt(v, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSlotReservation_Decrease(t *testing.T) {
	db := seedStock(t, 5)
	ctx := context.Background()
	require.NoError(t, db.InitSlots(ctx, testProductID, 5))
	s := NewSlotReservation(db)

	ok, err := s.Decrease(ctx, testProductID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	sold, _ := db.CountSlots(ctx, testProductID, domain.SlotSold)
	available, _ := db.CountSlots(ctx, testProductID, domain.SlotAvailable)
	assert.Equal(t, int64(2), sold)
	assert.Equal(t, int64(3), available)
}

func TestSlotReservation_AllOrNothing(t *testing.T) {
	db := seedStock(t, 3)
	ctx := context.Background()
	require.NoError(t, db.InitSlots(ctx, testProductID, 3))
	s := NewSlotReservation(db)

	ok, err := s.Decrease(ctx, testProductID, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	// a refused reservation must leave every slot available
	available, _ := db.CountSlots(ctx, testProductID, domain.SlotAvailable)
	assert.Equal(t, int64(3), available)
}

func TestSlotReservation_ConcurrentConservation(t *testing.T) {
	db := seedStock(t, 5)
	ctx := context.Background()
	require.NoError(t, db.InitSlots(ctx, testProductID, 5))
	s := NewSlotReservation(db)

	var success atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Decrease(ctx, testProductID, 1)
			assert.NoError(t, err)
			if ok {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	sold, _ := db.CountSlots(ctx, testProductID, domain.SlotSold)
	available, _ := db.CountSlots(ctx, testProductID, domain.SlotAvailable)
	assert.Equal(t, int64(5), success.Load())
	assert.Equal(t, int64(5), sold)
	assert.Equal(t, int64(0), available)
	assert.Equal(t, int64(5), sold+available, "slots are conserved")
}

// flaky inner strategy for the retry facade
type conflictNTimes struct {
	remaining atomic.Int32
	calls     atomic.Int32
	err       error
}

func (s *conflictNTimes) Decrease(ctx context.Context, productID string, qty int64) (bool, error) {
	s.calls.Add(1)
	if s.remaining.Add(-1) >= 0 {
		return false, s.err
	}
	return true, nil
}

func (s *conflictNTimes) Name() string { return "CONFLICTING" }

func TestOptimisticRetry_RetriesVersionConflicts(t *testing.T) {
	inner := &conflictNTimes{err: domain.ErrVersionConflict}
	inner.remaining.Store(2)
	s := &OptimisticRetry{inner: inner, backoff: time.Millisecond}

	ok, err := s.Decrease(context.Background(), testProductID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestOptimisticRetry_PropagatesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	inner := &conflictNTimes{err: boom}
	inner.remaining.Store(5)
	s := &OptimisticRetry{inner: inner, backoff: time.Millisecond}

	_, err := s.Decrease(context.Background(), testProductID, 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), inner.calls.Load(), "non-conflict errors are not retried")
}

func TestOptimisticRetry_ContextCancelled(t *testing.T) {
	inner := &conflictNTimes{err: domain.ErrVersionConflict}
	inner.remaining.Store(1 << 20)
	s := &OptimisticRetry{inner: inner, backoff: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Decrease(ctx, testProductID, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelector_Select(t *testing.T) {
	selector := NewSelector(testutil.NewMemCache(), testutil.NewMemStock())

	for name, want := range map[string]string{
		NamePessimistic:      "PESSIMISTIC_LOCK",
		NameDistributedMutex: "DISTRIBUTED_MUTEX",
		NameAtomicCounter:    "ATOMIC_COUNTER_SYNC",
		NameSlotReservation:  "SLOT_RESERVATION",
	} {
		s, err := selector.Select(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, s.Name())
	}

	_, err := selector.Select("two-phase-commit")
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
}
