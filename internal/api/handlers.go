package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/order-engine/internal/api/middleware"
	"github.com/example/order-engine/internal/command"
	"github.com/example/order-engine/internal/query"
)

// Handlers bundles the command and query sides behind the HTTP surface.
type Handlers struct {
	commands *command.Handler
	queries  *query.Handler
	log      *logrus.Logger
}

func NewHandlers(commands *command.Handler, queries *query.Handler, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{commands: commands, queries: queries, log: log}
}

// ==================== Product Handlers ====================

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateProduct
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, err := h.commands.CreateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queries.ListProducts())
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/products/")
	if productID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "product ID is required"})
		return
	}

	p, ok := h.queries.GetProduct(productID)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/products/")

	var cmd command.UpdateProduct
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	cmd.ProductID = productID

	if err := h.commands.UpdateProduct(r.Context(), cmd); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product updated"})
}

func (h *Handlers) DiscontinueProduct(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/products/")

	if err := h.commands.DiscontinueProduct(r.Context(), command.DiscontinueProduct{ProductID: productID}); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product discontinued"})
}

func (h *Handlers) Restock(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/products/"), "/restock")

	var cmd command.Restock
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	cmd.ProductID = productID

	if err := h.commands.Restock(r.Context(), cmd); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "stock added"})
}

func (h *Handlers) GetInventory(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/inventory/")
	if productID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "product ID is required"})
		return
	}

	inv, ok := h.queries.GetInventory(productID)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "no stock record for product"})
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// ==================== Cart Handlers ====================

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "user ID is required"})
		return
	}
	respondJSON(w, http.StatusOK, h.queries.GetCart(userID))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "user ID is required"})
		return
	}

	var cmd command.AddToCart
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	cmd.UserID = userID

	if err := h.commands.AddToCart(r.Context(), cmd); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "item added to cart"})
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	productID := extractPathParam(r.URL.Path, "/cart/items/")
	if userID == "" || productID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "user ID and product ID are required"})
		return
	}

	cmd := command.RemoveFromCart{
		UserID:    userID,
		ProductID: productID,
		Size:      r.URL.Query().Get("size"),
		Color:     r.URL.Query().Get("color"),
	}
	if err := h.commands.RemoveFromCart(r.Context(), cmd); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "user ID is required"})
		return
	}

	if err := h.commands.ClearCart(r.Context(), command.ClearCart{UserID: userID}); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

func (h *Handlers) MergeGuestCart(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "user ID is required"})
		return
	}

	var cmd command.MergeGuestCart
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	cmd.UserID = userID

	if err := h.commands.MergeGuestCart(r.Context(), cmd); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "guest cart merged"})
}

// ==================== Order Handlers ====================

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "user ID is required"})
		return
	}

	var cmd command.PlaceOrder
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	cmd.UserID = userID

	o, err := h.commands.PlaceOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "user ID is required"})
		return
	}
	respondJSON(w, http.StatusOK, h.queries.ListOrdersByUser(userID))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := extractPathParam(r.URL.Path, "/orders/")
	if orderID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "order ID is required"})
		return
	}

	o, ok := h.queries.GetOrder(orderID)
	if !ok {
		// Order numbers are customer-facing, allow lookup by either key.
		o, ok = h.queries.GetOrderByNumber(orderID)
	}
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	if o.UserID != getUserID(r) && !middleware.IsAdmin(r.Context()) {
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/cancel")
	if !h.authorizeOrderAction(w, r, orderID) {
		return
	}

	var cmd command.CancelOrder
	_ = json.NewDecoder(r.Body).Decode(&cmd)
	cmd.OrderID = orderID
	cmd.Actor = getUserID(r)

	o, err := h.commands.CancelOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) ReturnOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/return")
	if !h.authorizeOrderAction(w, r, orderID) {
		return
	}

	var cmd command.ReturnOrder
	_ = json.NewDecoder(r.Body).Decode(&cmd)
	cmd.OrderID = orderID
	cmd.Actor = getUserID(r)

	o, err := h.commands.ReturnOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ==================== Payment Handlers ====================

func (h *Handlers) IssuePaymentSession(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/payment")
	if !h.authorizeOrderAction(w, r, orderID) {
		return
	}

	o, err := h.commands.IssuePaymentSession(r.Context(), command.IssuePaymentSession{OrderID: orderID})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"order_id":   o.ID,
		"payload":    o.Session.Payload,
		"expires_at": o.Session.ExpiresAt,
	})
}

func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/payment/confirm")
	if !h.authorizeOrderAction(w, r, orderID) {
		return
	}

	var cmd command.ConfirmPayment
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if cmd.TransactionID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "transaction_id is required"})
		return
	}
	cmd.OrderID = orderID

	o, err := h.commands.ConfirmPayment(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) AbortPayment(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/payment/abort")
	if !h.authorizeOrderAction(w, r, orderID) {
		return
	}

	var cmd command.AbortPayment
	_ = json.NewDecoder(r.Body).Decode(&cmd)
	cmd.OrderID = orderID

	o, err := h.commands.AbortPayment(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ==================== Admin Handlers ====================

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		respondJSON(w, http.StatusOK, h.queries.ListOrdersByStatus(status))
		return
	}
	respondJSON(w, http.StatusOK, h.queries.ListAllOrders())
}

func (h *Handlers) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSuffix(extractPathParam(r.URL.Path, "/admin/orders/"), "/transition")

	var cmd command.TransitionOrder
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	cmd.OrderID = orderID
	cmd.Actor = getUserID(r)

	o, err := h.commands.TransitionOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID := extractPathParam(r.URL.Path, "/admin/users/")
	userID = strings.TrimSuffix(userID, "/stats")

	stats, ok := h.queries.GetUserStats(userID)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "no stats for user"})
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ==================== Helpers ====================

// authorizeOrderAction loads the order read model and checks that the caller
// owns the order or is an admin. It writes the error response on failure.
func (h *Handlers) authorizeOrderAction(w http.ResponseWriter, r *http.Request, orderID string) bool {
	if orderID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "order ID is required"})
		return false
	}
	o, ok := h.queries.GetOrder(orderID)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return false
	}
	if o.UserID != getUserID(r) && !middleware.IsAdmin(r.Context()) {
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
		return false
	}
	return true
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// getUserID prefers the authenticated user from the JWT context and falls
// back to the X-User-ID header for internal callers.
func getUserID(r *http.Request) string {
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		return userID
	}
	return r.Header.Get("X-User-ID")
}
