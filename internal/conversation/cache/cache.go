package cache

import (
	"context"
	"errors"

	"github.com/ddudev/storefront-gateway/internal/conversation"
)

// RecentCache keeps the restore payload for each user's current
// conversation: the id plus the most recent messages, pre-truncated.
type RecentCache interface {
	Get(ctx context.Context, userID string) (*conversation.Snapshot, error)
	Set(ctx context.Context, userID string, snap *conversation.Snapshot) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
