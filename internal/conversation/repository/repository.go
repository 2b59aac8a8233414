package repository

import (
	"context"
	"errors"

	"github.com/ddudev/storefront-gateway/internal/conversation"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository defines the persistence operations for chat
// threads. Consumers define this interface, not the MongoDB
// implementation.
type ConversationRepository interface {
	Current(ctx context.Context, userID string) (*conversation.Conversation, error)
	Upsert(ctx context.Context, conv *conversation.Conversation) error
	Delete(ctx context.Context, userID string) error
}
