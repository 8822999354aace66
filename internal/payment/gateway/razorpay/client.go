package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openvenue/gatepass/internal/config"
	paymentdomain "github.com/openvenue/gatepass/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	fetchAttempts   = 3
	fetchRetryDelay = 2 * time.Second
)

// Client is a thin Razorpay Orders API client authenticated with HTTP
// basic auth (key id / key secret).
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	log       *zap.Logger
	sleep     func(time.Duration)
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	timeout := cfg.Razorpay.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.Razorpay.BaseURL), "/"),
		keyID:     cfg.Razorpay.KeyID,
		keySecret: cfg.Razorpay.KeySecret,
		http:      &http.Client{Timeout: timeout},
		log:       log.Named("gateway.razorpay"),
		sleep:     time.Sleep,
	}
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type paymentCollection struct {
	Count int               `json:"count"`
	Items []paymentResponse `json:"items"`
}

type paymentResponse struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`
}

func (c *Client) CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (*paymentdomain.ProviderOrder, error) {
	body, err := json.Marshal(orderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("order creation rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return nil, fmt.Errorf("%w: http %d", paymentdomain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var order orderResponse
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	return &paymentdomain.ProviderOrder{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Status:   order.Status,
	}, nil
}

// FetchOrderPayments polls the provider for payment attempts on an
// order. Transient failures are retried a few times with a fixed delay
// because the provider may still be writing the capture record when the
// client-side verify request races the webhook.
func (c *Client) FetchOrderPayments(ctx context.Context, providerOrderID string) ([]paymentdomain.ProviderPayment, error) {
	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		payments, err := c.fetchOnce(ctx, providerOrderID)
		if err == nil {
			return payments, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < fetchAttempts {
			c.log.Warn("fetch order payments failed, retrying",
				zap.String("provider_order_id", providerOrderID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			c.sleep(fetchRetryDelay)
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, providerOrderID string) ([]paymentdomain.ProviderPayment, error) {
	url := fmt.Sprintf("%s/v1/orders/%s/payments", c.baseURL, providerOrderID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d", paymentdomain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var collection paymentCollection
	if err := json.Unmarshal(raw, &collection); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	payments := make([]paymentdomain.ProviderPayment, 0, len(collection.Items))
	for _, item := range collection.Items {
		payments = append(payments, paymentdomain.ProviderPayment{
			ID:          item.ID,
			OrderID:     item.OrderID,
			Status:      item.Status,
			Amount:      item.Amount,
			Currency:    item.Currency,
			Method:      item.Method,
			ErrorCode:   item.ErrorCode,
			ErrorReason: item.ErrorDescription,
			CreatedAt:   item.CreatedAt,
		})
	}
	return payments, nil
}
