// Package payment issues QR payment sessions for pending orders and
// verifies settlement callbacks against the provider before marking orders
// paid. Order state itself lives in the order aggregate; this package
// coordinates it with the external settlement network.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/order-engine/internal/domain/order"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionExpired     = errors.New("payment session has expired")
	ErrVerificationFailed = errors.New("settlement verification failed")
	ErrAmountMismatch     = errors.New("settlement amount does not match order total")
	ErrUnknownOrder       = errors.New("settlement references unknown order")
)

// Settlement talks to the payment provider. Verify confirms that a
// transaction settled for the given order number and amount.
type Settlement interface {
	Verify(ctx context.Context, orderNumber, transactionID string, amount int64) error
}

// Manager wires payment sessions onto orders.
type Manager struct {
	orders        *order.Service
	settlement    Settlement
	account       string
	sessionTTL    time.Duration
	verifyTimeout time.Duration
	log           *logrus.Entry
}

func NewManager(orders *order.Service, settlement Settlement, account string, sessionTTL, verifyTimeout time.Duration) *Manager {
	return &Manager{
		orders:        orders,
		settlement:    settlement,
		account:       account,
		sessionTTL:    sessionTTL,
		verifyTimeout: verifyTimeout,
		log:           logrus.WithField("component", "payment"),
	}
}

// Payload encodes the QR content for a session. Opaque to clients; the
// fields are pipe-delimited so provider apps can parse them without JSON.
func Payload(account, orderNumber string, amount int64, expiresAt time.Time) string {
	return strings.Join([]string{
		"PAY01",
		account,
		orderNumber,
		strconv.FormatInt(amount, 10),
		strconv.FormatInt(expiresAt.Unix(), 10),
	}, "|")
}

// Issue opens a fresh payment session on a pending order. Reissuing
// replaces the previous session and its QR payload.
func (m *Manager) Issue(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	issuedAt := time.Now()
	expiresAt := issuedAt.Add(m.sessionTTL)
	payload := Payload(m.account, o.OrderNumber, o.Total, expiresAt)

	o, err = m.orders.IssueSession(ctx, orderID, payload, issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"order_id":   orderID,
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Info("payment session issued")

	return o, nil
}

// Confirm verifies a settlement callback and marks the order paid. The
// whole flow is idempotent: resubmitting a settled transaction succeeds
// without a second verification round trip or a second event.
func (m *Manager) Confirm(ctx context.Context, orderID, transactionID string) (*order.Order, error) {
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.PaymentStatus == order.PaymentPaid {
		if o.TransactionID == transactionID {
			return o, nil
		}
		return nil, order.ErrOrderAlreadyPaid
	}

	if o.Session == nil {
		return nil, order.ErrNoActiveSession
	}
	if o.Session.Expired(time.Now()) {
		return nil, ErrSessionExpired
	}

	vctx, cancel := context.WithTimeout(ctx, m.verifyTimeout)
	defer cancel()
	if err := m.settlement.Verify(vctx, o.OrderNumber, transactionID, o.Total); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"order_id":       orderID,
			"transaction_id": transactionID,
		}).Warn("settlement verification failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: provider timeout", ErrVerificationFailed)
		}
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	return m.orders.ConfirmPayment(ctx, orderID, transactionID, o.Total, time.Now())
}

// Abort cancels an order's payment session and the order with it.
func (m *Manager) Abort(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return m.orders.CancelPaymentSession(ctx, orderID, reason)
}

// ExpireIfDue cancels the order if its session deadline has passed.
// Returns true when an expiry was applied.
func (m *Manager) ExpireIfDue(ctx context.Context, orderID string) (bool, error) {
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != order.StatusPending || o.Session == nil {
		return false, nil
	}
	if !o.Session.Expired(time.Now()) {
		return false, nil
	}

	if _, err := m.orders.CancelPaymentSession(ctx, orderID, "payment session expired"); err != nil {
		if errors.Is(err, order.ErrOrderAlreadyPaid) || errors.Is(err, order.ErrOrderCancelled) {
			// Payment or a manual cancel raced the reaper and won.
			return false, nil
		}
		return false, err
	}

	m.log.WithField("order_id", orderID).Info("payment session expired, order cancelled")
	return true, nil
}
