package handlers

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"kortstore/internal/domain"
)

// fakeAccounts is an in-memory domain.AccountRepository for handler tests.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts []*domain.Account
	nextID   int
}

func (f *fakeAccounts) add(acc domain.Account) *domain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if acc.ID == "" {
		acc.ID = formatID(f.nextID)
	}
	stored := acc
	f.accounts = append(f.accounts, &stored)
	return &stored
}

func formatID(n int) string {
	const hex = "0123456789abcdef"
	id := make([]byte, 24)
	for i := range id {
		id[i] = '0'
	}
	for i := len(id) - 1; n > 0 && i >= 0; i-- {
		id[i] = hex[n%16]
		n /= 16
	}
	return string(id)
}

func (f *fakeAccounts) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	f.mu.Lock()
	for _, acc := range f.accounts {
		if acc.Email == account.Email || acc.Username == account.Username {
			f.mu.Unlock()
			return nil, domain.ErrDuplicateIdentity
		}
	}
	f.mu.Unlock()
	return f.add(*account), nil
}

func (f *fakeAccounts) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return f.find(func(acc *domain.Account) bool { return acc.Email == email })
}

func (f *fakeAccounts) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return f.find(func(acc *domain.Account) bool { return acc.Username == username })
}

func (f *fakeAccounts) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return f.find(func(acc *domain.Account) bool { return acc.ID == id })
}

func (f *fakeAccounts) find(match func(*domain.Account) bool) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accounts {
		if match(acc) {
			copied := *acc
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAccounts) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accounts {
		if acc.ID == id {
			acc.PasswordHash = passwordHash
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeAccounts) UpdatePresence(ctx context.Context, id, location, latitude, longitude, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accounts {
		if acc.ID == id {
			acc.Location = location
			acc.Latitude = latitude
			acc.Longitude = longitude
			acc.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

// fakeOrders is an in-memory domain.OrderRepository for handler tests.
type fakeOrders struct {
	mu        sync.Mutex
	orders    []*domain.Order
	purchases map[string][]domain.PurchasedProduct
	createErr error
}

func (f *fakeOrders) Create(ctx context.Context, order *domain.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *order
	f.orders = append(f.orders, &copied)
	return nil
}

func (f *fakeOrders) RecordPurchases(ctx context.Context, userID, orderID string, items []domain.PurchasedProduct) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purchases == nil {
		f.purchases = make(map[string][]domain.PurchasedProduct)
	}
	f.purchases[userID] = append(f.purchases[userID], items...)
	return nil
}

func (f *fakeOrders) ListPurchases(ctx context.Context, userID string) ([]domain.PurchasedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PurchasedProduct(nil), f.purchases[userID]...), nil
}

type capturedEvent struct {
	order *domain.Order
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakePublisher) OrderCompleted(ctx context.Context, order *domain.Order) {
	f.mu.Lock()
	f.events = append(f.events, capturedEvent{order: order})
	f.mu.Unlock()
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fixedLocator struct {
	location string
	lat, lon string
}

func (l fixedLocator) Locate(ip string) (string, string, string, bool) {
	if l.location == "" {
		return "", "", "", false
	}
	return l.location, l.lat, l.lon, true
}

func hashOf(password string) string {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(hash)
}
