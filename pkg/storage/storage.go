// Package storage defines the keyed slot contract shared by the durable
// (per-origin) and session-scoped snapshot stores.
package storage

import (
	"context"
	"errors"
)

// Slot keys. Each key has exactly one writer.
const (
	KeyCartItems    = "lx_cart_items"
	KeyLoans        = "lx_loans"
	KeyChatMessages = "chat_messages"
)

// ErrNotInitialized is returned by stores used before being wired.
var ErrNotInitialized = errors.New("slot store not initialized")

// Slots reads and overwrites whole snapshots by key.
type Slots interface {
	// Load returns the stored payload; ok is false when nothing was ever saved.
	Load(ctx context.Context, key string) (payload []byte, ok bool, err error)
	// Save replaces the payload stored at key.
	Save(ctx context.Context, key string, payload []byte) error
}
