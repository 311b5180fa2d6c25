package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/order-engine/internal/domain/cart"
	"github.com/example/order-engine/internal/domain/inventory"
	"github.com/example/order-engine/internal/domain/order"
	"github.com/example/order-engine/internal/domain/payment"
	"github.com/example/order-engine/internal/domain/product"
)

// statusFor maps domain errors onto HTTP statuses. Anything unmapped is an
// internal error; domain packages own the client-facing taxonomy.
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, inventory.ErrProductNotStocked),
		errors.Is(err, cart.ErrItemNotInCart):
		return http.StatusNotFound

	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidAmount),
		errors.Is(err, product.ErrInvalidName),
		errors.Is(err, product.ErrInvalidSKU),
		errors.Is(err, product.ErrInvalidPrice),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrQuantityCapped),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest

	case errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrOrderAlreadyPaid),
		errors.Is(err, order.ErrOrderCancelled),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrNotDelivered),
		errors.Is(err, order.ErrReturnWindowClosed),
		errors.Is(err, order.ErrNoActiveSession),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, product.ErrAlreadyDiscontinued):
		return http.StatusConflict

	case errors.Is(err, payment.ErrSessionExpired):
		return http.StatusGone

	case errors.Is(err, payment.ErrVerificationFailed),
		errors.Is(err, payment.ErrAmountMismatch),
		errors.Is(err, payment.ErrUnknownOrder):
		return http.StatusPaymentRequired

	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
