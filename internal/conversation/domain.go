package conversation

import "time"

// RecentLimit caps how many messages are restored for a new turn. The
// full history is echoed back to the assistant on every request, so
// this bounds the context sent upstream.
const RecentLimit = 6

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one finalized conversation turn. Timestamp is unix
// milliseconds to match the wire format.
type Message struct {
	ID        string `json:"id" bson:"id"`
	Role      Role   `json:"role" bson:"role"`
	Content   string `json:"content" bson:"content"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
}

// Conversation is the durable record of one analytics chat thread,
// keyed by the admin user that owns it.
type Conversation struct {
	ID        string    `json:"conversationId" bson:"conversation_id"`
	UserID    string    `json:"-" bson:"user_id"`
	Messages  []Message `json:"messages" bson:"messages"`
	CreatedAt time.Time `json:"-" bson:"created_at"`
	UpdatedAt time.Time `json:"-" bson:"updated_at"`
}

// Snapshot is the restore payload: the conversation id plus at most the
// RecentLimit most recent messages.
type Snapshot struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
}

// Truncate returns at most the limit most recent messages.
func Truncate(messages []Message, limit int) []Message {
	if len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}
