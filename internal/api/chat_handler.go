package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ddudev/storefront-gateway/internal/analytics"
	"github.com/ddudev/storefront-gateway/internal/chatstream"
	"github.com/ddudev/storefront-gateway/internal/conversation"
)

type AssistantStreamer interface {
	Stream(ctx context.Context, req chatstream.Request, cb chatstream.Callbacks) error
}

type ConversationStore interface {
	Recent(ctx context.Context, userID string) (*conversation.Snapshot, error)
	Save(ctx context.Context, conv *conversation.Conversation) error
	Clear(ctx context.Context, userID string) error
}

type AnalyticsRecorder interface {
	Record(ctx context.Context, eventType, aggregateID string, payload interface{}) error
}

// ChatHandler serves the streaming analytics chat and its companion
// restore/reset endpoints. The stream route must stay outside any
// response timeout or compression middleware.
type ChatHandler struct {
	assistant     AssistantStreamer
	conversations ConversationStore
	analytics     AnalyticsRecorder
}

func NewChatHandler(assistant AssistantStreamer, conversations ConversationStore, recorder AnalyticsRecorder) *ChatHandler {
	return &ChatHandler{
		assistant:     assistant,
		conversations: conversations,
		analytics:     recorder,
	}
}

type ChatRequestDTO struct {
	Message        string                    `json:"message"`
	ConversationID string                    `json:"conversation_id,omitempty"`
	History        []chatstream.HistoryEntry `json:"history,omitempty"`
}

// Stream proxies one chat turn. Until the first frame goes out errors
// are ordinary JSON responses; after that the status line is already
// written, so failures travel as error frames inside the stream.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", "")
		return
	}

	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required", "")
		return
	}

	snap, err := h.conversations.Recent(r.Context(), userID)
	if err != nil {
		// chat still works without history, just with less context
		log.Printf("failed to load conversation for user %s: %v", userID, err)
		snap = &conversation.Snapshot{}
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = snap.ConversationID
	}
	history := req.History
	if len(history) == 0 {
		for _, m := range snap.Messages {
			history = append(history, chatstream.HistoryEntry{Role: string(m.Role), Content: m.Content})
		}
	}

	acc := conversation.NewAccumulator(snap.Messages)
	acc.Begin(req.Message)

	enc := chatstream.NewEncoder(w)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	cb := chatstream.Callbacks{
		OnContent: func(fragment string) {
			acc.Append(fragment)
			start()
			if err := enc.Encode(chatstream.Frame{Type: chatstream.FrameContent, Content: fragment}); err != nil {
				log.Printf("failed to write content frame: %v", err)
			}
		},
		OnToolProcessing: func() {
			start()
			if err := enc.Encode(chatstream.Frame{Type: chatstream.FrameToolProcessing}); err != nil {
				log.Printf("failed to write tool frame: %v", err)
			}
		},
		OnDone: func(upstreamConversationID string, timestamp int64) {
			if conversationID == "" {
				conversationID = upstreamConversationID
			}
			acc.Finalize(timestamp)
			start()
			if err := enc.Encode(chatstream.Frame{
				Type:           chatstream.FrameDone,
				ConversationID: conversationID,
				Timestamp:      timestamp,
			}); err != nil {
				log.Printf("failed to write done frame: %v", err)
			}
			if err := enc.Done(); err != nil {
				log.Printf("failed to write stream terminator: %v", err)
			}
			h.persistTurn(userID, conversationID, acc.Messages())
		},
		OnError: func(message string) {
			acc.Fail(message)
			if started {
				if err := enc.Encode(chatstream.Frame{Type: chatstream.FrameError, Error: message}); err != nil {
					log.Printf("failed to write error frame: %v", err)
				}
			} else {
				respondError(w, http.StatusBadGateway, message, "")
			}
			h.persistTurn(userID, conversationID, acc.Messages())
		},
	}

	if err := h.assistant.Stream(r.Context(), chatstream.Request{
		Message:        req.Message,
		ConversationID: conversationID,
		History:        history,
	}, cb); err != nil {
		log.Printf("assistant stream for user %s failed: %v", userID, err)
	}
}

func (h *ChatHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", "")
		return
	}

	snap, err := h.conversations.Recent(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load conversation", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing user authentication", "")
		return
	}

	if err := h.conversations.Clear(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear conversation", err.Error())
		return
	}

	if err := h.analytics.Record(r.Context(), analytics.EventConversationCleared, userID, map[string]interface{}{
		"user_id": userID,
	}); err != nil {
		log.Printf("failed to record conversation_cleared event: %v", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// persistTurn runs after the client response is finished, so it uses
// its own deadline instead of the request context.
func (h *ChatHandler) persistTurn(userID, conversationID string, messages []conversation.Message) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conv := &conversation.Conversation{
		ID:       conversationID,
		UserID:   userID,
		Messages: messages,
	}
	if err := h.conversations.Save(ctx, conv); err != nil {
		log.Printf("failed to persist conversation %s: %v", conversationID, err)
	}

	if err := h.analytics.Record(ctx, analytics.EventChatTurnCompleted, conversationID, map[string]interface{}{
		"user_id":         userID,
		"conversation_id": conversationID,
		"message_count":   len(messages),
	}); err != nil {
		log.Printf("failed to record chat_turn_completed event: %v", err)
	}
}
