package store

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/order-engine/internal/readmodel"
	"github.com/sirupsen/logrus"
)

// PostgresReadStore implements ReadStoreInterface using PostgreSQL.
// Nested structures (items, address, history) are stored as JSONB columns.
type PostgresReadStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *logrus.Entry
}

// NewPostgresReadStore creates a new PostgreSQL-based read store
func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{
		db:  db,
		log: logrus.WithField("component", "read-store"),
	}
}

// Set stores a read model
func (rs *PostgresReadStore) Set(collection, id string, data any) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.setUnsafe(collection, id, data)
}

func (rs *PostgresReadStore) setUnsafe(collection, id string, data any) {
	switch collection {
	case readmodel.Products:
		rs.setProduct(data.(*readmodel.ProductReadModel))
	case readmodel.Carts:
		rs.setCart(data.(*readmodel.CartReadModel))
	case readmodel.Orders:
		rs.setOrder(data.(*readmodel.OrderReadModel))
	case readmodel.Inventory:
		rs.setInventory(data.(*readmodel.InventoryReadModel))
	case readmodel.OrderNumbers:
		rs.setOrderNumber(data.(*readmodel.OrderNumberRef))
	case readmodel.UserStats:
		rs.setUserStats(data.(*readmodel.UserStatsReadModel))
	}
}

// Get retrieves a read model by id
func (rs *PostgresReadStore) Get(collection, id string) (any, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.getUnsafe(collection, id)
}

func (rs *PostgresReadStore) getUnsafe(collection, id string) (any, bool) {
	switch collection {
	case readmodel.Products:
		return rs.getProduct(id)
	case readmodel.Carts:
		return rs.getCart(id)
	case readmodel.Orders:
		return rs.getOrder(id)
	case readmodel.Inventory:
		return rs.getInventory(id)
	case readmodel.OrderNumbers:
		return rs.getOrderNumber(id)
	case readmodel.UserStats:
		return rs.getUserStats(id)
	}
	return nil, false
}

// GetAll retrieves all items in a collection
func (rs *PostgresReadStore) GetAll(collection string) []any {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	switch collection {
	case readmodel.Products:
		return rs.getAllProducts()
	case readmodel.Carts:
		return rs.getAllCarts()
	case readmodel.Orders:
		return rs.getAllOrders()
	case readmodel.Inventory:
		return rs.getAllInventory()
	}
	return nil
}

var readTables = map[string]string{
	readmodel.Products:     "read_products",
	readmodel.Carts:        "read_carts",
	readmodel.Orders:       "read_orders",
	readmodel.Inventory:    "read_inventory",
	readmodel.OrderNumbers: "read_order_numbers",
	readmodel.UserStats:    "read_user_stats",
}

// Delete removes a read model
func (rs *PostgresReadStore) Delete(collection, id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	table, ok := readTables[collection]
	if !ok {
		return
	}
	if _, err := rs.db.Exec("DELETE FROM "+table+" WHERE id = $1", id); err != nil {
		rs.log.WithError(err).WithField("collection", collection).Error("delete read model")
	}
}

// Update modifies a read model using an update function
func (rs *PostgresReadStore) Update(collection, id string, updateFn func(current any) any) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	current, found := rs.getUnsafe(collection, id)
	if !found {
		return false
	}
	rs.setUnsafe(collection, id, updateFn(current))
	return true
}

// Reset truncates every read table ahead of a full replay.
func (rs *PostgresReadStore) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, table := range readTables {
		if _, err := rs.db.Exec("TRUNCATE TABLE " + table); err != nil {
			rs.log.WithError(err).WithField("table", table).Error("reset read table")
		}
	}
}

// Product operations

func (rs *PostgresReadStore) setProduct(p *readmodel.ProductReadModel) {
	_, err := rs.db.Exec(`
		INSERT INTO read_products (id, name, description, sku, image_url, price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			sku = EXCLUDED.sku,
			image_url = EXCLUDED.image_url,
			price = EXCLUDED.price,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Name, p.Description, p.SKU, p.ImageURL, p.Price, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		rs.log.WithError(err).Error("set product")
	}
}

func (rs *PostgresReadStore) getProduct(id string) (any, bool) {
	var p readmodel.ProductReadModel
	err := rs.db.QueryRow(`
		SELECT id, name, description, sku, image_url, price, status, created_at, updated_at
		FROM read_products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.SKU, &p.ImageURL, &p.Price, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			rs.log.WithError(err).Error("get product")
		}
		return nil, false
	}
	return &p, true
}

func (rs *PostgresReadStore) getAllProducts() []any {
	rows, err := rs.db.Query(`
		SELECT id, name, description, sku, image_url, price, status, created_at, updated_at
		FROM read_products ORDER BY created_at DESC
	`)
	if err != nil {
		rs.log.WithError(err).Error("list products")
		return nil
	}
	defer rows.Close()

	var products []any
	for rows.Next() {
		var p readmodel.ProductReadModel
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.SKU, &p.ImageURL, &p.Price, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			rs.log.WithError(err).Error("scan product")
			continue
		}
		products = append(products, &p)
	}
	return products
}

// Cart operations

func (rs *PostgresReadStore) setCart(c *readmodel.CartReadModel) {
	itemsJSON, _ := json.Marshal(c.Items)
	_, err := rs.db.Exec(`
		INSERT INTO read_carts (id, user_id, items, subtotal, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			items = EXCLUDED.items,
			subtotal = EXCLUDED.subtotal,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.UserID, itemsJSON, c.Subtotal, time.Now())
	if err != nil {
		rs.log.WithError(err).Error("set cart")
	}
}

func (rs *PostgresReadStore) getCart(id string) (any, bool) {
	var c readmodel.CartReadModel
	var itemsJSON []byte
	err := rs.db.QueryRow(`
		SELECT id, user_id, items, subtotal FROM read_carts WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &itemsJSON, &c.Subtotal)
	if err != nil {
		if err != sql.ErrNoRows {
			rs.log.WithError(err).Error("get cart")
		}
		return nil, false
	}
	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		rs.log.WithError(err).Error("unmarshal cart items")
		return nil, false
	}
	return &c, true
}

func (rs *PostgresReadStore) getAllCarts() []any {
	rows, err := rs.db.Query(`SELECT id, user_id, items, subtotal FROM read_carts`)
	if err != nil {
		rs.log.WithError(err).Error("list carts")
		return nil
	}
	defer rows.Close()

	var carts []any
	for rows.Next() {
		var c readmodel.CartReadModel
		var itemsJSON []byte
		if err := rows.Scan(&c.ID, &c.UserID, &itemsJSON, &c.Subtotal); err != nil {
			rs.log.WithError(err).Error("scan cart")
			continue
		}
		if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
			continue
		}
		carts = append(carts, &c)
	}
	return carts
}

// Order operations

func (rs *PostgresReadStore) setOrder(o *readmodel.OrderReadModel) {
	itemsJSON, _ := json.Marshal(o.Items)
	addressJSON, _ := json.Marshal(o.ShippingAddress)
	historyJSON, _ := json.Marshal(o.StatusHistory)
	_, err := rs.db.Exec(`
		INSERT INTO read_orders (
			id, order_number, user_id, items, shipping_address, payment_method,
			payment_status, status, subtotal, shipping_cost, discount, total,
			status_history, payment_payload, payment_expires_at, transaction_id,
			paid_at, delivered_at, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			payment_status = EXCLUDED.payment_status,
			status = EXCLUDED.status,
			status_history = EXCLUDED.status_history,
			payment_payload = EXCLUDED.payment_payload,
			payment_expires_at = EXCLUDED.payment_expires_at,
			transaction_id = EXCLUDED.transaction_id,
			paid_at = EXCLUDED.paid_at,
			delivered_at = EXCLUDED.delivered_at,
			updated_at = EXCLUDED.updated_at
	`, o.ID, o.OrderNumber, o.UserID, itemsJSON, addressJSON, o.PaymentMethod,
		o.PaymentStatus, o.Status, o.Subtotal, o.ShippingCost, o.Discount, o.Total,
		historyJSON, o.PaymentPayload, o.PaymentExpiresAt, o.TransactionID,
		o.PaidAt, o.DeliveredAt, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		rs.log.WithError(err).Error("set order")
	}
}

func (rs *PostgresReadStore) scanOrder(scan func(dest ...any) error) (*readmodel.OrderReadModel, error) {
	var o readmodel.OrderReadModel
	var itemsJSON, addressJSON, historyJSON []byte
	err := scan(
		&o.ID, &o.OrderNumber, &o.UserID, &itemsJSON, &addressJSON, &o.PaymentMethod,
		&o.PaymentStatus, &o.Status, &o.Subtotal, &o.ShippingCost, &o.Discount, &o.Total,
		&historyJSON, &o.PaymentPayload, &o.PaymentExpiresAt, &o.TransactionID,
		&o.PaidAt, &o.DeliveredAt, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(historyJSON, &o.StatusHistory); err != nil {
		return nil, err
	}
	return &o, nil
}

const orderColumns = `id, order_number, user_id, items, shipping_address, payment_method,
	payment_status, status, subtotal, shipping_cost, discount, total,
	status_history, payment_payload, payment_expires_at, transaction_id,
	paid_at, delivered_at, notes, created_at, updated_at`

func (rs *PostgresReadStore) getOrder(id string) (any, bool) {
	row := rs.db.QueryRow(`SELECT `+orderColumns+` FROM read_orders WHERE id = $1`, id)
	o, err := rs.scanOrder(row.Scan)
	if err != nil {
		if err != sql.ErrNoRows {
			rs.log.WithError(err).Error("get order")
		}
		return nil, false
	}
	return o, true
}

func (rs *PostgresReadStore) getAllOrders() []any {
	rows, err := rs.db.Query(`SELECT ` + orderColumns + ` FROM read_orders ORDER BY created_at DESC`)
	if err != nil {
		rs.log.WithError(err).Error("list orders")
		return nil
	}
	defer rows.Close()

	var orders []any
	for rows.Next() {
		o, err := rs.scanOrder(rows.Scan)
		if err != nil {
			rs.log.WithError(err).Error("scan order")
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

// Inventory operations

func (rs *PostgresReadStore) setInventory(inv *readmodel.InventoryReadModel) {
	_, err := rs.db.Exec(`
		INSERT INTO read_inventory (id, stock, sales_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			stock = EXCLUDED.stock,
			sales_count = EXCLUDED.sales_count,
			updated_at = EXCLUDED.updated_at
	`, inv.ProductID, inv.Stock, inv.SalesCount, time.Now())
	if err != nil {
		rs.log.WithError(err).Error("set inventory")
	}
}

func (rs *PostgresReadStore) getInventory(id string) (any, bool) {
	var inv readmodel.InventoryReadModel
	err := rs.db.QueryRow(`
		SELECT id, stock, sales_count FROM read_inventory WHERE id = $1
	`, id).Scan(&inv.ProductID, &inv.Stock, &inv.SalesCount)
	if err != nil {
		if err != sql.ErrNoRows {
			rs.log.WithError(err).Error("get inventory")
		}
		return nil, false
	}
	return &inv, true
}

func (rs *PostgresReadStore) getAllInventory() []any {
	rows, err := rs.db.Query(`SELECT id, stock, sales_count FROM read_inventory`)
	if err != nil {
		rs.log.WithError(err).Error("list inventory")
		return nil
	}
	defer rows.Close()

	var items []any
	for rows.Next() {
		var inv readmodel.InventoryReadModel
		if err := rows.Scan(&inv.ProductID, &inv.Stock, &inv.SalesCount); err != nil {
			continue
		}
		items = append(items, &inv)
	}
	return items
}

// Order number index operations

func (rs *PostgresReadStore) setOrderNumber(ref *readmodel.OrderNumberRef) {
	_, err := rs.db.Exec(`
		INSERT INTO read_order_numbers (id, order_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, ref.OrderNumber, ref.OrderID)
	if err != nil {
		rs.log.WithError(err).Error("set order number ref")
	}
}

func (rs *PostgresReadStore) getOrderNumber(number string) (any, bool) {
	var ref readmodel.OrderNumberRef
	err := rs.db.QueryRow(`
		SELECT id, order_id FROM read_order_numbers WHERE id = $1
	`, number).Scan(&ref.OrderNumber, &ref.OrderID)
	if err != nil {
		if err != sql.ErrNoRows {
			rs.log.WithError(err).Error("get order number ref")
		}
		return nil, false
	}
	return &ref, true
}

// User stats operations

func (rs *PostgresReadStore) setUserStats(s *readmodel.UserStatsReadModel) {
	_, err := rs.db.Exec(`
		INSERT INTO read_user_stats (id, order_count, total_spent, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			order_count = EXCLUDED.order_count,
			total_spent = EXCLUDED.total_spent,
			updated_at = EXCLUDED.updated_at
	`, s.UserID, s.OrderCount, s.TotalSpent, s.UpdatedAt)
	if err != nil {
		rs.log.WithError(err).Error("set user stats")
	}
}

func (rs *PostgresReadStore) getUserStats(id string) (any, bool) {
	var s readmodel.UserStatsReadModel
	err := rs.db.QueryRow(`
		SELECT id, order_count, total_spent, updated_at FROM read_user_stats WHERE id = $1
	`, id).Scan(&s.UserID, &s.OrderCount, &s.TotalSpent, &s.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			rs.log.WithError(err).Error("get user stats")
		}
		return nil, false
	}
	return &s, true
}
