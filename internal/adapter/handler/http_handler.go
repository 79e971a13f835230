package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/core/service"
	"github.com/rl1809/checkout/internal/core/stock"
	"github.com/rl1809/checkout/internal/port"
)

const maxIdempotencyKeyLen = 300

type HTTPHandler struct {
	payments *service.PaymentService
	selector *stock.Selector
	stocks   port.StockRepository
	cache    port.CacheRepository
}

func NewHTTPHandler(payments *service.PaymentService, selector *stock.Selector, stocks port.StockRepository, cache port.CacheRepository) *HTTPHandler {
	return &HTTPHandler{payments: payments, selector: selector, stocks: stocks, cache: cache}
}

type ConfirmRequest struct {
	ImpUID      string `json:"imp_uid"`
	MerchantUID string `json:"merchant_uid"`
}

type ConfirmResponse struct {
	OrderUID     string `json:"order_uid,omitempty"`
	Status       string `json:"status,omitempty"`
	Message      string `json:"message"`
	Compensation string `json:"compensation,omitempty"`
}

func (h *HTTPHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if len(idemKey) > maxIdempotencyKeyLen {
		writeJSON(w, http.StatusBadRequest, ConfirmResponse{Message: "idempotency key too long"})
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ConfirmResponse{Message: "invalid request body"})
		return
	}
	if req.ImpUID == "" || req.MerchantUID == "" {
		writeJSON(w, http.StatusBadRequest, ConfirmResponse{Message: "missing required fields"})
		return
	}

	result, err := h.payments.Confirm(r.Context(), idemKey, req.ImpUID, req.MerchantUID)
	if err != nil {
		status, resp := mapConfirmError(err)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, ConfirmResponse{
		OrderUID: result.OrderUID,
		Status:   result.Status,
		Message:  result.Message,
	})
}

func mapConfirmError(err error) (int, ConfirmResponse) {
	resp := ConfirmResponse{Status: "FAILED"}

	var confirmErr *service.ConfirmError
	if errors.As(err, &confirmErr) {
		resp.Compensation = string(confirmErr.Compensation)
	}

	switch {
	case errors.Is(err, domain.ErrRequestInFlight):
		resp.Message = "processing, retry later"
		return http.StatusConflict, resp
	case errors.Is(err, domain.ErrWaitTimeout):
		resp.Message = "timed out, retry"
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrPaymentNotPaid):
		resp.Message = err.Error()
		return http.StatusBadRequest, resp
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		resp.Message = err.Error()
		return http.StatusNotFound, resp
	case errors.Is(err, domain.ErrStockExhausted):
		resp.Message = err.Error()
		return http.StatusGone, resp
	case errors.Is(err, domain.ErrGatewayTimeout):
		resp.Message = err.Error()
		return http.StatusGatewayTimeout, resp
	case errors.Is(err, domain.ErrGatewayUnavailable):
		resp.Message = err.Error()
		return http.StatusBadGateway, resp
	default:
		resp.Message = "internal error"
		return http.StatusInternalServerError, resp
	}
}

type BenchmarkResponse struct {
	Strategy   string `json:"strategy"`
	ProductID  string `json:"product_id"`
	Quantity   int64  `json:"quantity"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
}

// BenchmarkDecrease runs one decrement through the named strategy so the four
// algorithms can be compared under the same load driver.
func (h *HTTPHandler) BenchmarkDecrease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("strategy")
	productID := r.URL.Query().Get("product_id")
	qty := queryInt(r, "quantity", 1)
	if productID == "" || qty <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id and positive quantity required"})
		return
	}

	strategy, err := h.selector.Select(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown strategy: " + name})
		return
	}

	start := time.Now()
	ok, err := strategy.Decrease(r.Context(), productID, qty)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, BenchmarkResponse{
		Strategy:   name,
		ProductID:  productID,
		Quantity:   qty,
		Success:    ok,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// BenchmarkInit resets a product's stock for all strategies at once: the DB
// counter, the Redis counter, and the slot rows.
func (h *HTTPHandler) BenchmarkInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	productID := r.URL.Query().Get("product_id")
	stockCount := queryInt(r, "stock", -1)
	if productID == "" || stockCount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id and stock required"})
		return
	}

	ctx := r.Context()
	if err := h.stocks.SetProductStock(ctx, productID, stockCount); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := h.cache.Set(ctx, stock.AtomicCounterKey(productID), strconv.FormatInt(stockCount, 10), 0); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := h.stocks.InitSlots(ctx, productID, stockCount); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": productID,
		"stock":      stockCount,
		"message":    "stock initialized for all strategies",
	})
}

func (h *HTTPHandler) BenchmarkStatus(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id required"})
		return
	}

	ctx := r.Context()
	product, err := h.stocks.GetProduct(ctx, productID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if product == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}

	counter, _, err := h.cache.Get(ctx, stock.AtomicCounterKey(productID))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	available, err := h.stocks.CountSlots(ctx, productID, domain.SlotAvailable)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id":      productID,
		"db_stock":        product.Stock,
		"redis_stock":     counter,
		"available_slots": available,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
