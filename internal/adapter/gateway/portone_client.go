package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/port"
)

// PortOneClient talks to the PortOne V1 REST API. All calls are blocking I/O
// with an explicit connect timeout and a longer read timeout; a read timeout
// surfaces as domain.ErrGatewayTimeout so the caller can compensate.
type PortOneClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

func NewPortOneClient(baseURL, apiKey, apiSecret string, connectTimeout, readTimeout time.Duration) *PortOneClient {
	return &PortOneClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

type apiResponse struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

type paymentBody struct {
	ImpUID      string `json:"imp_uid"`
	MerchantUID string `json:"merchant_uid"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
}

func (c *PortOneClient) FetchPayment(ctx context.Context, gatewayRef, orderUID string) (*port.GatewayPayment, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payment, err := c.fetchOne(ctx, token, c.baseURL+"/payments/"+gatewayRef)
	if err == nil {
		return payment, nil
	}
	if errors.Is(err, domain.ErrGatewayTimeout) {
		return nil, err
	}

	// primary reference unknown; fall back to the merchant reference
	log.Printf("gateway: lookup by %s failed (%v), trying merchant uid %s", gatewayRef, err, orderUID)
	payment, err = c.fetchOne(ctx, token, c.baseURL+"/payments/find/"+orderUID)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (c *PortOneClient) fetchOne(ctx context.Context, token, url string) (*port.GatewayPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrPaymentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrGatewayUnavailable, err)
	}
	if body.Code != 0 {
		return nil, fmt.Errorf("%w: code %d %s", domain.ErrPaymentNotFound, body.Code, body.Message)
	}

	var payment paymentBody
	if err := json.Unmarshal(body.Response, &payment); err != nil {
		return nil, fmt.Errorf("%w: decode payment: %v", domain.ErrGatewayUnavailable, err)
	}

	return &port.GatewayPayment{
		GatewayRef: payment.ImpUID,
		OrderUID:   payment.MerchantUID,
		Amount:     payment.Amount,
		Status:     payment.Status,
	}, nil
}

func (c *PortOneClient) Cancel(ctx context.Context, gatewayRef, reason string) (bool, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(map[string]string{
		"imp_uid": gatewayRef,
		"reason":  reason,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/cancel", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, classify(err)
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: decode: %v", domain.ErrGatewayUnavailable, err)
	}
	if body.Code != 0 {
		log.Printf("gateway: cancel refused for %s: code %d %s", gatewayRef, body.Code, body.Message)
		return false, nil
	}
	return true, nil
}

func (c *PortOneClient) accessToken(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"imp_key":    c.apiKey,
		"imp_secret": c.apiSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/getToken", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	var body struct {
		Code     int `json:"code"`
		Response struct {
			AccessToken string `json:"access_token"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", domain.ErrGatewayUnavailable, err)
	}
	if body.Code != 0 {
		return "", fmt.Errorf("%w: token code %d", domain.ErrGatewayUnavailable, body.Code)
	}
	return body.Response.AccessToken, nil
}

// classify maps transport errors onto the gateway error taxonomy.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
}
