// Package store provides the durable key-value storage backing one
// storefront profile: cart, session, cached catalog and related keys. A
// profile behaves like browser local storage: writes are visible to every
// open client of the same profile through the watch channel.
package store

import "context"

// Well-known profile keys. The legacy names are kept so profiles written by
// earlier client versions keep loading.
const (
	KeyCart          = "kort_cart"
	KeySession       = "kort_session_v1"
	KeyLegacyUser    = "kort_user"
	KeyLegacyUserAlt = "kortex_user"
	KeyLegacyToken   = "kortex_token"
	KeyPendingToast  = "kort_infobox_msg"
	KeyCatalogCache  = "kort_github_products"
	KeyCatalogETag   = "kort_github_etag"
	KeyMyProducts    = "kort_user_products"
)

// Event signals that a key changed (set or deleted) in the profile,
// possibly by another client of the same profile.
type Event struct {
	Key string
}

// Store is a durable key-value store scoped to one profile.
//
// Watch returns a channel of change events; the channel closes when ctx is
// cancelled. Delivery is best effort: a slow consumer may miss intermediate
// events, so consumers reload current state rather than trusting payloads.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Watch(ctx context.Context) (<-chan Event, error)
}
