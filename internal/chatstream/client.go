package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one prior turn echoed to the assistant for context.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the payload sent to the upstream assistant endpoint.
type Request struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id,omitempty"`
	History        []HistoryEntry `json:"history,omitempty"`
}

// Callbacks receive stream events in arrival order. OnContent carries
// just the incremental fragment; accumulation belongs to the caller.
// Exactly one of OnDone/OnError fires per request, at most once.
type Callbacks struct {
	OnContent        func(fragment string)
	OnToolProcessing func()
	OnDone           func(conversationID string, timestamp int64)
	OnError          func(message string)
}

// Client streams one assistant exchange. Cancellation rides on the
// request context: cancelling it aborts the underlying body read.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	// the overall timeout covers the whole stream, so it is generous
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Stream issues the request and drives cb until a terminal event. The
// returned error mirrors what OnError received; a nil return means
// OnDone fired.
func (c *Client) Stream(ctx context.Context, req Request, cb Callbacks) error {
	body, err := json.Marshal(req)
	if err != nil {
		return c.fail(cb, fmt.Sprintf("encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return c.fail(cb, fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return c.fail(cb, fmt.Sprintf("assistant request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fail(cb, readErrorMessage(resp))
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return c.fail(cb, "no response body")
	}

	var conversationID string
	dec := NewDecoder(resp.Body)
	for {
		frame, err := dec.Next()
		if err != nil {
			if errors.Is(err, ErrDone) || errors.Is(err, io.EOF) {
				// sentinel or abrupt-but-successful close: finalize
				// with whatever accumulated, synthesizing identifiers
				finalize(cb, conversationID, 0)
				return nil
			}
			if ctx.Err() != nil {
				return c.fail(cb, fmt.Sprintf("stream cancelled: %v", ctx.Err()))
			}
			// mid-stream transport hiccup after a 2xx; treat like an
			// abrupt close rather than losing the accumulated reply
			log.Printf("chat stream read error, finalizing early: %v", err)
			finalize(cb, conversationID, 0)
			return nil
		}

		switch frame.Type {
		case FrameContent:
			if cb.OnContent != nil {
				cb.OnContent(frame.Content)
			}
		case FrameToolProcessing:
			if cb.OnToolProcessing != nil {
				cb.OnToolProcessing()
			}
		case FrameDone:
			conversationID = frame.ConversationID
			finalize(cb, conversationID, frame.Timestamp)
			return nil
		case FrameError:
			return c.fail(cb, frame.Error)
		default:
			// unknown frame types are skipped for forward compatibility
		}
	}
}

func (c *Client) fail(cb Callbacks, message string) error {
	if cb.OnError != nil {
		cb.OnError(message)
	}
	return errors.New(message)
}

func finalize(cb Callbacks, conversationID string, timestamp int64) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}
	if cb.OnDone != nil {
		cb.OnDone(conversationID, timestamp)
	}
}

func readErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("assistant request failed with status %d", resp.StatusCode)
}
