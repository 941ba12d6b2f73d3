// Package stripe sends Connect transfers through the Stripe REST API.
package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/clubpay/internal/config"
	"github.com/smallbiznis/clubpay/internal/transfer/domain"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.stripe.com"

type stripeTransfer struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Destination   string `json:"destination"`
	TransferGroup string `json:"transfer_group"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Stripe.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Stripe.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.Stripe.SecretKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.Named("transfer.stripe"),
	}
}

// Provide exposes the client as the payout transfer rail.
func Provide(cfg config.Config, log *zap.Logger) domain.Transferer {
	return New(cfg, log)
}

func (c *Client) CreateTransfer(ctx context.Context, req domain.Request) (domain.Result, error) {
	if req.AmountMinor <= 0 {
		return domain.Result{}, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.Destination) == "" {
		return domain.Result{}, domain.ErrMissingDestination
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(req.AmountMinor, 10))
	values.Set("currency", strings.ToLower(req.Currency))
	values.Set("destination", req.Destination)
	if req.TransferGroup != "" {
		values.Set("transfer_group", req.TransferGroup)
	}
	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set("metadata["+k+"]", req.Metadata[k])
	}

	transfer, err := c.doRequest(ctx, http.MethodPost, "/v1/transfers", values, req.IdempotencyKey)
	if err != nil {
		return domain.Result{}, err
	}
	c.log.Info("transfer created",
		zap.String("transfer_id", transfer.ID),
		zap.Int64("amount_minor", transfer.Amount),
		zap.String("currency", transfer.Currency),
		zap.String("idempotency_key", req.IdempotencyKey),
	)
	return domain.Result{TransferID: transfer.ID}, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
) (stripeTransfer, error) {
	if c.apiKey == "" {
		return stripeTransfer{}, domain.ErrInvalidConfig
	}

	body := ""
	if values != nil {
		body = values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return stripeTransfer{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return stripeTransfer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		railErr := &domain.RailError{StatusCode: resp.StatusCode}
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err == nil {
			railErr.Type = stripeErr.Error.Type
			railErr.Code = stripeErr.Error.Code
			railErr.Message = strings.TrimSpace(stripeErr.Error.Message)
		}
		return stripeTransfer{}, railErr
	}

	var transfer stripeTransfer
	if err := json.NewDecoder(resp.Body).Decode(&transfer); err != nil {
		return stripeTransfer{}, err
	}
	if transfer.ID == "" {
		return stripeTransfer{}, domain.ErrResponseInvalid
	}
	return transfer, nil
}
