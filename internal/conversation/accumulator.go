package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Accumulator separates the single in-flight assistant reply from the
// finalized message log. The scratch buffer grows fragment by fragment
// while the log stays immutable, and the assistant message id is fixed
// at send time so the in-progress reply has a stable identity before
// its first fragment arrives.
type Accumulator struct {
	log         []Message
	assistantID string
	buf         strings.Builder
}

// NewAccumulator seeds the log with previously restored messages.
func NewAccumulator(history []Message) *Accumulator {
	log := make([]Message, len(history))
	copy(log, history)
	return &Accumulator{log: log}
}

// Begin appends the user's message to the log and reserves an id for
// the assistant reply that will stream in.
func (a *Accumulator) Begin(content string) (userMessage Message) {
	userMessage = Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
	a.log = append(a.log, userMessage)
	a.assistantID = uuid.NewString()
	a.buf.Reset()
	return userMessage
}

// Append adds one incremental fragment to the in-flight reply.
func (a *Accumulator) Append(fragment string) {
	a.buf.WriteString(fragment)
}

// Pending is the reply accumulated so far.
func (a *Accumulator) Pending() string {
	return a.buf.String()
}

// Finalize moves the accumulated reply into the log as an immutable
// message and resets the scratch buffer.
func (a *Accumulator) Finalize(timestamp int64) Message {
	msg := Message{
		ID:        a.assistantID,
		Role:      RoleAssistant,
		Content:   a.buf.String(),
		Timestamp: timestamp,
	}
	a.log = append(a.log, msg)
	a.buf.Reset()
	a.assistantID = ""
	return msg
}

// Fail turns a stream failure into a visible conversation turn: the
// apology plus the raw error joins the permanent log instead of being
// silently dropped.
func (a *Accumulator) Fail(errMessage string) Message {
	msg := Message{
		ID:        a.assistantID,
		Role:      RoleAssistant,
		Content:   "Sorry, something went wrong while answering. (" + errMessage + ")",
		Timestamp: time.Now().UnixMilli(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	a.log = append(a.log, msg)
	a.buf.Reset()
	a.assistantID = ""
	return msg
}

// Messages returns the finalized log.
func (a *Accumulator) Messages() []Message {
	return a.log
}
