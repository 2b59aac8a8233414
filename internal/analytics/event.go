// Package analytics records storefront events in a Postgres outbox and
// ships them to Kafka asynchronously, so a broker outage never fails a
// storefront request.
package analytics

import "time"

const (
	EventEligibilityChecked  = "eligibility_checked"
	EventChatTurnCompleted   = "chat_turn_completed"
	EventConversationCleared = "conversation_cleared"
)

// OutboxEvent is one unpublished analytics record.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
