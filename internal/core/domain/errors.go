package domain

import "errors"

var (
	// ErrVersionConflict means a versioned write lost the race and the caller
	// should re-read and retry. Handled internally, never shown to clients.
	ErrVersionConflict = errors.New("version conflict")

	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")

	// ErrAmountMismatch is fatal and non-retryable: the gateway captured a
	// different amount than the order price.
	ErrAmountMismatch = errors.New("amount mismatch")

	// ErrPaymentNotPaid means the gateway reports a status other than paid.
	ErrPaymentNotPaid = errors.New("payment not paid")

	// ErrStockExhausted means stock ran out after money moved; a compensating
	// cancel has been attempted against the gateway.
	ErrStockExhausted = errors.New("stock exhausted after charge")

	// ErrGatewayTimeout is a read timeout on a gateway call whose outcome is
	// unknown; a network cancel has been attempted.
	ErrGatewayTimeout = errors.New("gateway timeout")

	// ErrGatewayUnavailable covers gateway failures other than timeout and
	// unknown-payment.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrPaymentNotFound means the gateway knows neither the primary nor the
	// fallback reference.
	ErrPaymentNotFound = errors.New("payment not found at gateway")

	// ErrRequestInFlight is the immediate conflict signal under the reject
	// contention policy: another holder is processing the same key.
	ErrRequestInFlight = errors.New("request already being processed")

	// ErrWaitTimeout means the wait-for-result budget was exhausted.
	ErrWaitTimeout = errors.New("timed out waiting for result")

	ErrUnknownStrategy = errors.New("unknown stock strategy")
)
