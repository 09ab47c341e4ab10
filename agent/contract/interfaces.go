package contract

import "context"

// Catalog resolves products. Lookups that miss return ErrProductNotFound.
type Catalog interface {
	GetByID(ctx context.Context, id string) (Product, error)
	GetByIDOrExactName(ctx context.Context, text string) (Product, error)
	IsAvailable(ctx context.Context, id string) (bool, error)
}

// Searcher returns products ranked by similarity to query. May be empty.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Product, error)
}

// OrderRepository records an order with all its items, or nothing.
type OrderRepository interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (OrderReceipt, error)
}

type OrderNotifier interface {
	OrderCreated(ctx context.Context, receipt OrderReceipt, in CreateOrderInput) error
}
