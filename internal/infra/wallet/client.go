// Package wallet is the HTTP AccountLedger backed by the wallet service.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"order_go/internal/domain"
	"order_go/internal/infra"

	"github.com/shopspring/decimal"
)

const (
	PathWithdraw = "/v1/wallets/internal/withdraw"
	PathDeposit  = "/v1/wallets/internal/deposit"

	HeaderIdempotencyKey = "Idempotency-Key"

	codeInsufficientFunds = "INSUFFICIENT_FUNDS"
	msgInsufficientFunds  = "insufficient funds"
)

// Client is the wallet service REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	logger     *slog.Logger
}

var _ domain.AccountLedger = (*Client)(nil)

// NewClient creates a wallet client from config.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Ledger.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer: NewSigner(cfg.Ledger.AccessKey, cfg.Ledger.Secret),
		logger: slog.Default().With("module", "wallet_client"),
	}
}

// movementRequest is the wallet's internal withdraw/deposit body. The wallet
// identifies the owner by email, which is the account id here.
type movementRequest struct {
	Email  string          `json:"email"`
	Amount decimal.Decimal `json:"amount"`
}

// apiError is the wallet's problem payload. Insufficient funds arrive as 400
// with detail "Insufficient funds".
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (e apiError) insufficientFunds(status int) bool {
	if status == http.StatusPaymentRequired || e.Code == codeInsufficientFunds {
		return true
	}
	if status != http.StatusBadRequest && status != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(e.Detail+" "+e.Message), msgInsufficientFunds)
}

func (e apiError) text() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// Debit withdraws amount from the account.
func (c *Client) Debit(ctx context.Context, accountID string, amount decimal.Decimal, key string) error {
	return c.move(ctx, PathWithdraw, accountID, amount, key)
}

// Credit deposits amount to the account.
func (c *Client) Credit(ctx context.Context, accountID string, amount decimal.Decimal, key string) error {
	return c.move(ctx, PathDeposit, accountID, amount, key)
}

func (c *Client) move(ctx context.Context, path, accountID string, amount decimal.Decimal, key string) error {
	body, err := json.Marshal(movementRequest{Email: accountID, Amount: amount})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range c.signer.GenerateHeaders(http.MethodPost, path, string(body)) {
		req.Header.Set(k, v)
	}
	req.Header.Set(HeaderIdempotencyKey, key)
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Nothing was sent when the dial failed. Any later failure leaves the
		// movement in doubt and the caller must retry under the same key.
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, domain.NewNetworkError(path, err))
		}
		return domain.NewNetworkError(path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.logger.DebugContext(ctx, "Wallet movement accepted",
			slog.String("path", path),
			slog.String("account", accountID),
			slog.String("key", key),
		)
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable,
			domain.NewNetworkError(path, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(respBody))))
	}

	var apiErr apiError
	_ = json.Unmarshal(respBody, &apiErr)

	if apiErr.insufficientFunds(resp.StatusCode) {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, apiErr.text())
	}

	return domain.NewFatalNetworkError(path, errors.New("wallet api error: status="+http.StatusText(resp.StatusCode)+" body="+string(respBody)))
}
