package store

// ReadStoreInterface is the storage behind the query side. Collections are
// flat namespaces (orders, products, inventory); values are the read model
// structs from the readmodel package.
type ReadStoreInterface interface {
	// Set stores or replaces a read model.
	Set(collection, id string, data any)

	// Get retrieves a read model by id.
	Get(collection, id string) (any, bool)

	// GetAll retrieves every item in a collection, in no particular order.
	GetAll(collection string) []any

	// Delete removes a read model.
	Delete(collection, id string)

	// Update applies fn to the current value if it exists. Returns false
	// when there is nothing to update.
	Update(collection, id string, updateFn func(current any) any) bool

	// Reset drops every collection. Called before a full event replay so
	// counter-style projections are rebuilt from zero instead of applied
	// on top of previously persisted state.
	Reset()
}
