package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPSettlement verifies transactions against the payment provider's
// verification endpoint.
type HTTPSettlement struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPSettlement(baseURL, apiKey string) *HTTPSettlement {
	return &HTTPSettlement{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyRequest struct {
	OrderNumber   string `json:"order_number"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

func (s *HTTPSettlement) Verify(ctx context.Context, orderNumber, transactionID string, amount int64) error {
	body, err := json.Marshal(verifyRequest{
		OrderNumber:   orderNumber,
		TransactionID: transactionID,
		Amount:        amount,
	})
	if err != nil {
		return errors.Wrap(err, "marshal verify request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/transactions/verify", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build verify request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "call settlement provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: provider returned %d", ErrVerificationFailed, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return errors.Wrap(err, "decode verify response")
	}
	if !out.Verified {
		switch out.Reason {
		case "amount_mismatch":
			return fmt.Errorf("%w: %s", ErrAmountMismatch, transactionID)
		case "unknown_order":
			return fmt.Errorf("%w: %s", ErrUnknownOrder, orderNumber)
		}
		return fmt.Errorf("%w: %s", ErrVerificationFailed, out.Reason)
	}
	return nil
}

// AutoApprove accepts every transaction. Local development only.
type AutoApprove struct{}

func (AutoApprove) Verify(ctx context.Context, orderNumber, transactionID string, amount int64) error {
	return nil
}
