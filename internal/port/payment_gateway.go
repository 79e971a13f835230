package port

import "context"

// GatewayPayment is the gateway's view of one payment.
type GatewayPayment struct {
	GatewayRef string // gateway's payment id (imp_uid)
	OrderUID   string // merchant reference (merchant_uid)
	Amount     int64
	Status     string // "paid", "ready", "failed", "cancelled"
}

// PaymentGateway is the external payment provider, consumed as an opaque
// capability. FetchPayment fails with domain.ErrGatewayTimeout on a read
// timeout, domain.ErrPaymentNotFound when neither reference is known, and
// domain.ErrGatewayUnavailable otherwise.
type PaymentGateway interface {
	// FetchPayment looks up a payment by gatewayRef, falling back to a lookup
	// by orderUID when the primary reference fails
	FetchPayment(ctx context.Context, gatewayRef, orderUID string) (*GatewayPayment, error)

	// Cancel issues a compensating cancellation; false means the gateway
	// refused or the outcome could not be confirmed
	Cancel(ctx context.Context, gatewayRef, reason string) (bool, error)
}
