// Package chatstream implements the analytics chat wire format: a
// chunked HTTP body of newline-delimited "data: <json-or-[DONE]>"
// lines. The gateway both consumes the format from the upstream
// assistant and produces it toward the browser, so the codec has a
// decoder and an encoder over the same Frame type.
package chatstream

// FramePrefix starts every frame line; anything else on the wire is
// keep-alive noise and is skipped.
const FramePrefix = "data: "

// DoneSentinel is the bare end-of-stream marker, distinct from the
// structured done frame.
const DoneSentinel = "[DONE]"

type FrameType string

const (
	FrameContent        FrameType = "content"
	FrameToolProcessing FrameType = "tool_processing"
	FrameDone           FrameType = "done"
	FrameError          FrameType = "error"
)

// Frame is one decoded event. The Type discriminant decides which of
// the payload fields is meaningful.
type Frame struct {
	Type           FrameType `json:"type"`
	Content        string    `json:"content,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Timestamp      int64     `json:"timestamp,omitempty"`
	Error          string    `json:"error,omitempty"`
}
