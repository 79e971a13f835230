package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/core/idempotency"
	"github.com/rl1809/checkout/internal/core/stock"
	"github.com/rl1809/checkout/internal/port"
)

// ContentionPolicy decides what a caller that lost the race for the
// idempotency lock gets back.
type ContentionPolicy string

const (
	// PolicyWaitForResult polls for the winner's cached result before
	// answering.
	PolicyWaitForResult ContentionPolicy = "wait"
	// PolicyRejectImmediately answers with a conflict signal right away.
	PolicyRejectImmediately ContentionPolicy = "reject"
)

// CompensationStatus records what happened to the compensating gateway cancel
// after a failure that may have left money captured.
type CompensationStatus string

const (
	CompensationNotNeeded CompensationStatus = "not_needed"
	CompensationDone      CompensationStatus = "compensated"
	// CompensationFailed must reach operators; the charge needs manual review.
	CompensationFailed CompensationStatus = "failed_needs_manual_review"
)

// ConfirmError is a fatal confirmation failure carrying the compensation
// outcome, so compensation failures are surfaced instead of swallowed.
type ConfirmError struct {
	Err          error
	Compensation CompensationStatus
}

func (e *ConfirmError) Error() string {
	return fmt.Sprintf("%v (compensation: %s)", e.Err, e.Compensation)
}

func (e *ConfirmError) Unwrap() error { return e.Err }

// ConfirmResult is the single observable outcome of a confirmation; it is
// what gets cached under the idempotency key.
type ConfirmResult struct {
	OrderUID string `json:"order_uid"`
	Status   string `json:"status"` // "PAID" or "FAILED"
	Message  string `json:"message"`
	Cached   bool   `json:"-"`
}

type PaymentService struct {
	idem                  *idempotency.Coordinator
	gateway               port.PaymentGateway
	orders                port.OrderRepository
	stock                 stock.Strategy
	policy                ContentionPolicy
	cacheTerminalFailures bool
}

func NewPaymentService(
	idem *idempotency.Coordinator,
	gateway port.PaymentGateway,
	orders port.OrderRepository,
	strategy stock.Strategy,
	policy ContentionPolicy,
	cacheTerminalFailures bool,
) *PaymentService {
	return &PaymentService{
		idem:                  idem,
		gateway:               gateway,
		orders:                orders,
		stock:                 strategy,
		policy:                policy,
		cacheTerminalFailures: cacheTerminalFailures,
	}
}

// Confirm verifies a payment against the gateway and decrements stock exactly
// once per idempotency key. An empty key bypasses idempotency entirely
// (backward-compatible webhook mode).
func (s *PaymentService) Confirm(ctx context.Context, idemKey, gatewayRef, orderUID string) (*ConfirmResult, error) {
	if idemKey == "" {
		log.Printf("confirm: no idempotency key, processing without dedup (order %s)", orderUID)
		return s.process(ctx, gatewayRef, orderUID)
	}

	if result, found, err := s.cachedResult(ctx, idemKey); err != nil {
		return nil, err
	} else if found {
		return result, nil
	}

	acquired, err := s.idem.TryAcquireLock(ctx, idemKey)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	if !acquired {
		return s.handleContention(ctx, idemKey)
	}
	defer func() {
		if err := s.idem.ReleaseLock(ctx, idemKey); err != nil {
			log.Printf("confirm: failed to release lock for key %s: %v", idemKey, err)
		}
	}()

	// another holder may have finished while this caller raced for the lock
	if result, found, err := s.cachedResult(ctx, idemKey); err != nil {
		return nil, err
	} else if found {
		return result, nil
	}

	result, err := s.process(ctx, gatewayRef, orderUID)
	if err != nil {
		s.maybeCacheFailure(ctx, idemKey, orderUID, err)
		return nil, err
	}

	if err := s.cacheResult(ctx, idemKey, result); err != nil {
		log.Printf("confirm: failed to cache result for key %s: %v", idemKey, err)
	}
	return result, nil
}

func (s *PaymentService) handleContention(ctx context.Context, idemKey string) (*ConfirmResult, error) {
	if s.policy == PolicyRejectImmediately {
		return nil, domain.ErrRequestInFlight
	}

	raw, found, err := s.idem.WaitForResult(ctx, idemKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrWaitTimeout
	}
	return decodeResult(raw), nil
}

func (s *PaymentService) process(ctx context.Context, gatewayRef, orderUID string) (*ConfirmResult, error) {
	info, err := s.gateway.FetchPayment(ctx, gatewayRef, orderUID)
	if errors.Is(err, domain.ErrGatewayTimeout) {
		// outcome unknown; the charge must not be left ambiguous
		comp := s.compensate(ctx, gatewayRef, "network cancel: verification timed out")
		return nil, &ConfirmError{Err: domain.ErrGatewayTimeout, Compensation: comp}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch payment: %w", err)
	}

	order, err := s.orders.GetOrderByUID(ctx, orderUID)
	if err != nil {
		return nil, fmt.Errorf("lookup order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	if order.Price != info.Amount {
		return nil, fmt.Errorf("%w: order price %d, gateway amount %d",
			domain.ErrAmountMismatch, order.Price, info.Amount)
	}

	if !strings.EqualFold(info.Status, "paid") {
		return nil, fmt.Errorf("%w: gateway status %q", domain.ErrPaymentNotPaid, info.Status)
	}

	payment, err := s.orders.GetPaymentByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup payment: %w", err)
	}
	if payment == nil {
		payment = &domain.Payment{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			Price:     order.Price,
			Status:    domain.PaymentStatusReady,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.orders.CreatePayment(ctx, *payment); err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
	}

	// true idempotence at the domain level, independent of the request key
	if payment.Status == domain.PaymentStatusPaid {
		log.Printf("confirm: payment already processed for order %s", order.ID)
		return paidResult(orderUID, "payment already verified"), nil
	}

	ok, err := s.stock.Decrease(ctx, order.ProductID, order.Quantity)
	if err != nil {
		return nil, fmt.Errorf("decrease stock: %w", err)
	}
	if !ok {
		// money may already have moved; cancel the charge
		comp := s.compensate(ctx, info.GatewayRef, "insufficient stock")
		return nil, &ConfirmError{Err: domain.ErrStockExhausted, Compensation: comp}
	}

	if err := s.orders.MarkPaymentPaid(ctx, payment.ID, info.GatewayRef); err != nil {
		return nil, fmt.Errorf("mark payment paid: %w", err)
	}
	if err := s.orders.MarkOrderPaid(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	log.Printf("confirm: payment verified for order %s via %s", order.ID, s.stock.Name())
	return paidResult(orderUID, "payment verified successfully"), nil
}

func (s *PaymentService) compensate(ctx context.Context, gatewayRef, reason string) CompensationStatus {
	ok, err := s.gateway.Cancel(ctx, gatewayRef, reason)
	if err != nil {
		log.Printf("confirm: CRITICAL compensating cancel failed for %s: %v", gatewayRef, err)
		return CompensationFailed
	}
	if !ok {
		log.Printf("confirm: CRITICAL compensating cancel refused for %s", gatewayRef)
		return CompensationFailed
	}
	log.Printf("confirm: compensating cancel issued for %s (%s)", gatewayRef, reason)
	return CompensationDone
}

// maybeCacheFailure pins amount-mismatch and stock-exhausted outcomes under
// the key so a retry cannot re-charge; other failures leave the key
// retryable.
func (s *PaymentService) maybeCacheFailure(ctx context.Context, idemKey, orderUID string, failure error) {
	if !s.cacheTerminalFailures {
		return
	}
	if !errors.Is(failure, domain.ErrAmountMismatch) && !errors.Is(failure, domain.ErrStockExhausted) {
		return
	}

	result := &ConfirmResult{OrderUID: orderUID, Status: "FAILED", Message: failure.Error()}
	if err := s.cacheResult(ctx, idemKey, result); err != nil {
		log.Printf("confirm: failed to cache terminal failure for key %s: %v", idemKey, err)
	}
}

func (s *PaymentService) cachedResult(ctx context.Context, idemKey string) (*ConfirmResult, bool, error) {
	raw, found, err := s.idem.GetCachedResult(ctx, idemKey)
	if err != nil {
		return nil, false, fmt.Errorf("read cached result: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return decodeResult(raw), true, nil
}

func (s *PaymentService) cacheResult(ctx context.Context, idemKey string, result *ConfirmResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.idem.CacheResult(ctx, idemKey, string(data))
}

func decodeResult(raw string) *ConfirmResult {
	var result ConfirmResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		result = ConfirmResult{Status: "PAID", Message: raw}
	}
	result.Cached = true
	return &result
}

func paidResult(orderUID, message string) *ConfirmResult {
	return &ConfirmResult{OrderUID: orderUID, Status: "PAID", Message: message}
}
