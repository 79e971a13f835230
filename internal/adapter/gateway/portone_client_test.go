package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/checkout/internal/core/domain"
)

type fakePortOne struct {
	mux *http.ServeMux

	tokenCalls int
	cancelBody map[string]string
	payments   map[string]paymentBody // by imp_uid
	byMerchant map[string]paymentBody // by merchant_uid
	cancelCode int
	fetchDelay time.Duration
}

func newFakePortOne() *fakePortOne {
	f := &fakePortOne{
		payments:   make(map[string]paymentBody),
		byMerchant: make(map[string]paymentBody),
	}
	f.mux = http.NewServeMux()
	f.mux.HandleFunc("POST /users/getToken", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		writeBody(w, 0, map[string]string{"access_token": "test-token"})
	})
	f.mux.HandleFunc("GET /payments/find/{uid}", func(w http.ResponseWriter, r *http.Request) {
		if f.fetchDelay > 0 {
			time.Sleep(f.fetchDelay)
		}
		p, ok := f.byMerchant[r.PathValue("uid")]
		if !ok {
			writeBody(w, 1, "not found")
			return
		}
		writeBody(w, 0, p)
	})
	f.mux.HandleFunc("GET /payments/{uid}", func(w http.ResponseWriter, r *http.Request) {
		if f.fetchDelay > 0 {
			time.Sleep(f.fetchDelay)
		}
		p, ok := f.payments[r.PathValue("uid")]
		if !ok {
			writeBody(w, 1, "not found")
			return
		}
		writeBody(w, 0, p)
	})
	f.mux.HandleFunc("POST /payments/cancel", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&f.cancelBody)
		writeBody(w, f.cancelCode, map[string]string{})
	})
	return f
}

func writeBody(w http.ResponseWriter, code int, response any) {
	raw, _ := json.Marshal(response)
	json.NewEncoder(w).Encode(apiResponse{Code: code, Response: raw})
}

func newTestClient(t *testing.T, f *fakePortOne, readTimeout time.Duration) *PortOneClient {
	t.Helper()
	server := httptest.NewServer(f.mux)
	t.Cleanup(server.Close)
	return NewPortOneClient(server.URL, "test-key", "test-secret", time.Second, readTimeout)
}

func TestFetchPayment_Primary(t *testing.T) {
	f := newFakePortOne()
	f.payments["imp_1"] = paymentBody{ImpUID: "imp_1", MerchantUID: "order-1", Amount: 150, Status: "paid"}
	client := newTestClient(t, f, time.Second)

	payment, err := client.FetchPayment(t.Context(), "imp_1", "order-1")
	require.NoError(t, err)
	assert.Equal(t, "imp_1", payment.GatewayRef)
	assert.Equal(t, "order-1", payment.OrderUID)
	assert.Equal(t, int64(150), payment.Amount)
	assert.Equal(t, "paid", payment.Status)
}

func TestFetchPayment_FallbackToMerchantUID(t *testing.T) {
	f := newFakePortOne()
	f.byMerchant["order-1"] = paymentBody{ImpUID: "imp_1", MerchantUID: "order-1", Amount: 150, Status: "paid"}
	client := newTestClient(t, f, time.Second)

	payment, err := client.FetchPayment(t.Context(), "imp_bogus", "order-1")
	require.NoError(t, err)
	assert.Equal(t, "imp_1", payment.GatewayRef)
}

func TestFetchPayment_NotFoundEither(t *testing.T) {
	f := newFakePortOne()
	client := newTestClient(t, f, time.Second)

	_, err := client.FetchPayment(t.Context(), "imp_bogus", "order-bogus")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestFetchPayment_ReadTimeout(t *testing.T) {
	f := newFakePortOne()
	f.payments["imp_1"] = paymentBody{ImpUID: "imp_1", Amount: 150, Status: "paid"}
	f.fetchDelay = 200 * time.Millisecond
	client := newTestClient(t, f, 50*time.Millisecond)

	_, err := client.FetchPayment(t.Context(), "imp_1", "order-1")
	assert.ErrorIs(t, err, domain.ErrGatewayTimeout,
		"a slow read must classify as timeout, not unavailable")
}

func TestFetchPayment_ServerDown(t *testing.T) {
	f := newFakePortOne()
	server := httptest.NewServer(f.mux)
	server.Close()
	client := NewPortOneClient(server.URL, "k", "s", time.Second, time.Second)

	_, err := client.FetchPayment(t.Context(), "imp_1", "order-1")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestCancel(t *testing.T) {
	f := newFakePortOne()
	client := newTestClient(t, f, time.Second)

	ok, err := client.Cancel(t.Context(), "imp_1", "insufficient stock")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "imp_1", f.cancelBody["imp_uid"])
	assert.Equal(t, "insufficient stock", f.cancelBody["reason"])
}

func TestCancel_Refused(t *testing.T) {
	f := newFakePortOne()
	f.cancelCode = 1
	client := newTestClient(t, f, time.Second)

	ok, err := client.Cancel(t.Context(), "imp_1", "reason")
	require.NoError(t, err)
	assert.False(t, ok)
}
