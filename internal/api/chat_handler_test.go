package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ddudev/storefront-gateway/internal/chatstream"
	"github.com/ddudev/storefront-gateway/internal/conversation"
)

type assistantMock struct {
	script func(cb chatstream.Callbacks)
	gotReq chatstream.Request
}

func (m *assistantMock) Stream(ctx context.Context, req chatstream.Request, cb chatstream.Callbacks) error {
	m.gotReq = req
	if m.script != nil {
		m.script(cb)
	}
	return nil
}

type storeMock struct {
	snapshot  *conversation.Snapshot
	recentErr error
	clearErr  error
	saved     []*conversation.Conversation
	cleared   []string
}

func (m *storeMock) Recent(ctx context.Context, userID string) (*conversation.Snapshot, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if m.snapshot != nil {
		return m.snapshot, nil
	}
	return &conversation.Snapshot{}, nil
}

func (m *storeMock) Save(ctx context.Context, conv *conversation.Conversation) error {
	m.saved = append(m.saved, conv)
	return nil
}

func (m *storeMock) Clear(ctx context.Context, userID string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = append(m.cleared, userID)
	return nil
}

type recorderMock struct {
	events []string
}

func (m *recorderMock) Record(ctx context.Context, eventType, aggregateID string, payload interface{}) error {
	m.events = append(m.events, eventType)
	return nil
}

func chatRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	request := httptest.NewRequest("POST", "/admin/analytics-chat", bytes.NewReader([]byte(body)))
	ctx := context.WithValue(request.Context(), "user_id", "admin_1")
	return request.WithContext(ctx)
}

func parseFrames(t *testing.T, body string) []chatstream.Frame {
	t.Helper()
	var frames []chatstream.Frame
	for _, line := range strings.Split(body, "\n") {
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			continue
		}
		var frame chatstream.Frame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			t.Fatalf("Failed to parse frame %q: %v", line, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestChatStream_Success(t *testing.T) {
	assistant := &assistantMock{script: func(cb chatstream.Callbacks) {
		cb.OnContent("Hello")
		cb.OnContent(" world")
		cb.OnDone("conv_1", 1700000000000)
	}}
	store := &storeMock{}
	events := &recorderMock{}
	handler := NewChatHandler(assistant, store, events)

	recorder := httptest.NewRecorder()
	handler.Stream(recorder, chatRequest(t, `{"message":"How are sales?"}`))

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected Content-Type text/event-stream, got %q", ct)
	}

	body := recorder.Body.String()
	if !strings.HasSuffix(body, "data: [DONE]\n") {
		t.Errorf("Expected stream to end with [DONE] sentinel, got %q", body)
	}

	frames := parseFrames(t, body)
	if len(frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d: %v", len(frames), frames)
	}
	if frames[0].Content != "Hello" || frames[1].Content != " world" {
		t.Errorf("Unexpected content frames: %v", frames)
	}
	done := frames[2]
	if done.Type != chatstream.FrameDone || done.ConversationID != "conv_1" || done.Timestamp != 1700000000000 {
		t.Errorf("Unexpected done frame: %+v", done)
	}

	if len(store.saved) != 1 {
		t.Fatalf("Expected 1 saved conversation, got %d", len(store.saved))
	}
	conv := store.saved[0]
	if conv.ID != "conv_1" || conv.UserID != "admin_1" {
		t.Errorf("Unexpected saved conversation: %+v", conv)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("Expected 2 messages in turn, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != conversation.RoleUser || conv.Messages[0].Content != "How are sales?" {
		t.Errorf("Unexpected user message: %+v", conv.Messages[0])
	}
	if conv.Messages[1].Role != conversation.RoleAssistant || conv.Messages[1].Content != "Hello world" {
		t.Errorf("Unexpected assistant message: %+v", conv.Messages[1])
	}

	if len(events.events) != 1 || events.events[0] != "chat_turn_completed" {
		t.Errorf("Expected chat_turn_completed event, got %v", events.events)
	}
}

func TestChatStream_Unauthorized(t *testing.T) {
	handler := NewChatHandler(&assistantMock{}, &storeMock{}, &recorderMock{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/admin/analytics-chat", bytes.NewReader([]byte(`{"message":"hi"}`)))
	// No user_id in context

	handler.Stream(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("Expected status code %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestChatStream_InvalidBody(t *testing.T) {
	handler := NewChatHandler(&assistantMock{}, &storeMock{}, &recorderMock{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not json"},
		{"empty message", `{"message":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Stream(recorder, chatRequest(t, tt.body))

			if recorder.Code != http.StatusBadRequest {
				t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, recorder.Code)
			}
		})
	}
}

func TestChatStream_ErrorBeforeFirstFrame(t *testing.T) {
	assistant := &assistantMock{script: func(cb chatstream.Callbacks) {
		cb.OnError("assistant unavailable")
	}}
	store := &storeMock{}
	handler := NewChatHandler(assistant, store, &recorderMock{})

	recorder := httptest.NewRecorder()
	handler.Stream(recorder, chatRequest(t, `{"message":"hi"}`))

	if recorder.Code != http.StatusBadGateway {
		t.Errorf("Expected status code %d, got %d", http.StatusBadGateway, recorder.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Message != "assistant unavailable" {
		t.Errorf("Expected message 'assistant unavailable', got '%s'", response.Message)
	}

	// the failed turn is still persisted so it shows up on restore
	if len(store.saved) != 1 {
		t.Fatalf("Expected 1 saved conversation, got %d", len(store.saved))
	}
	messages := store.saved[0].Messages
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if !strings.Contains(messages[1].Content, "assistant unavailable") {
		t.Errorf("Expected apology message mentioning the error, got %q", messages[1].Content)
	}
}

func TestChatStream_ErrorMidStream(t *testing.T) {
	assistant := &assistantMock{script: func(cb chatstream.Callbacks) {
		cb.OnContent("partial")
		cb.OnError("upstream reset")
	}}
	store := &storeMock{}
	handler := NewChatHandler(assistant, store, &recorderMock{})

	recorder := httptest.NewRecorder()
	handler.Stream(recorder, chatRequest(t, `{"message":"hi"}`))

	// the status line went out with the first frame
	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}

	frames := parseFrames(t, recorder.Body.String())
	last := frames[len(frames)-1]
	if last.Type != chatstream.FrameError || last.Error != "upstream reset" {
		t.Errorf("Expected trailing error frame, got %+v", last)
	}

	if len(store.saved) != 1 {
		t.Errorf("Expected failed turn to be persisted, got %d saves", len(store.saved))
	}
}

func TestChatStream_ToolProcessing(t *testing.T) {
	assistant := &assistantMock{script: func(cb chatstream.Callbacks) {
		cb.OnToolProcessing()
		cb.OnContent("result")
		cb.OnDone("conv_2", 1)
	}}
	handler := NewChatHandler(assistant, &storeMock{}, &recorderMock{})

	recorder := httptest.NewRecorder()
	handler.Stream(recorder, chatRequest(t, `{"message":"hi"}`))

	frames := parseFrames(t, recorder.Body.String())
	if frames[0].Type != chatstream.FrameToolProcessing {
		t.Errorf("Expected leading tool_processing frame, got %+v", frames[0])
	}
}

func TestChatStream_HistoryFromSnapshot(t *testing.T) {
	store := &storeMock{snapshot: &conversation.Snapshot{
		ConversationID: "conv_9",
		Messages: []conversation.Message{
			{ID: "m1", Role: conversation.RoleUser, Content: "earlier question"},
			{ID: "m2", Role: conversation.RoleAssistant, Content: "earlier answer"},
		},
	}}
	assistant := &assistantMock{script: func(cb chatstream.Callbacks) {
		cb.OnDone("", 2)
	}}
	handler := NewChatHandler(assistant, store, &recorderMock{})

	recorder := httptest.NewRecorder()
	handler.Stream(recorder, chatRequest(t, `{"message":"follow up"}`))

	if assistant.gotReq.ConversationID != "conv_9" {
		t.Errorf("Expected conversation_id conv_9 forwarded, got %q", assistant.gotReq.ConversationID)
	}
	if len(assistant.gotReq.History) != 2 || assistant.gotReq.History[0].Content != "earlier question" {
		t.Errorf("Expected snapshot history forwarded, got %v", assistant.gotReq.History)
	}

	if len(store.saved) != 1 {
		t.Fatalf("Expected 1 saved conversation, got %d", len(store.saved))
	}
	if store.saved[0].ID != "conv_9" {
		t.Errorf("Expected saved conversation conv_9, got %q", store.saved[0].ID)
	}
	// prior turn plus the new one
	if len(store.saved[0].Messages) != 4 {
		t.Errorf("Expected 4 messages, got %d", len(store.saved[0].Messages))
	}
}

func TestChatStream_SynthesizedConversationID(t *testing.T) {
	assistant := &assistantMock{script: func(cb chatstream.Callbacks) {
		cb.OnContent("hi")
		cb.OnDone("", 0)
	}}
	store := &storeMock{}
	handler := NewChatHandler(assistant, store, &recorderMock{})

	recorder := httptest.NewRecorder()
	handler.Stream(recorder, chatRequest(t, `{"message":"hi"}`))

	if len(store.saved) != 1 {
		t.Fatalf("Expected 1 saved conversation, got %d", len(store.saved))
	}
	if store.saved[0].ID == "" {
		t.Error("Expected a synthesized conversation id, got empty string")
	}
}

func TestChatCurrent_Success(t *testing.T) {
	store := &storeMock{snapshot: &conversation.Snapshot{
		ConversationID: "conv_9",
		Messages: []conversation.Message{
			{ID: "m1", Role: conversation.RoleUser, Content: "q"},
		},
	}}
	handler := NewChatHandler(&assistantMock{}, store, &recorderMock{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/admin/analytics-chat/current", nil)
	request = request.WithContext(context.WithValue(request.Context(), "user_id", "admin_1"))

	handler.Current(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}

	var response conversation.Snapshot
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.ConversationID != "conv_9" || len(response.Messages) != 1 {
		t.Errorf("Unexpected snapshot: %+v", response)
	}
}

func TestChatClear_Success(t *testing.T) {
	store := &storeMock{}
	events := &recorderMock{}
	handler := NewChatHandler(&assistantMock{}, store, events)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("DELETE", "/admin/analytics-chat/current", nil)
	request = request.WithContext(context.WithValue(request.Context(), "user_id", "admin_1"))

	handler.Clear(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("Expected status code %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if len(store.cleared) != 1 || store.cleared[0] != "admin_1" {
		t.Errorf("Expected clear for admin_1, got %v", store.cleared)
	}
	if len(events.events) != 1 || events.events[0] != "conversation_cleared" {
		t.Errorf("Expected conversation_cleared event, got %v", events.events)
	}
}
