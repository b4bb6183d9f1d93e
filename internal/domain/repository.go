package domain

import "context"

// AccountRepository is the persistence contract for account records.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdatePresence(ctx context.Context, id, location, latitude, longitude, status string) error
}

// OrderRepository is the persistence contract for processed orders and the
// purchased-products ledger.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	RecordPurchases(ctx context.Context, userID string, orderID string, items []PurchasedProduct) error
	ListPurchases(ctx context.Context, userID string) ([]PurchasedProduct, error)
}
