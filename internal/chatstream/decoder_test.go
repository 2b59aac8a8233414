package chatstream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunked preserves chunk boundaries: each Read serves one chunk.
func chunked(chunks ...string) io.Reader {
	readers := make([]io.Reader, len(chunks))
	for i, c := range chunks {
		readers[i] = strings.NewReader(c)
	}
	return io.MultiReader(readers...)
}

func collect(t *testing.T, r io.Reader) ([]Frame, error) {
	t.Helper()
	dec := NewDecoder(r)
	var frames []Frame
	for {
		frame, err := dec.Next()
		if err != nil {
			return frames, err
		}
		frames = append(frames, *frame)
	}
}

func TestDecoder_FrameSplitMidJSON(t *testing.T) {
	frames, err := collect(t, chunked(
		"data: {\"type\":\"content\",\"con",
		"tent\":\"Hi\"}\n",
	))

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, frames, 1)
	assert.Equal(t, FrameContent, frames[0].Type)
	assert.Equal(t, "Hi", frames[0].Content)
}

func TestDecoder_MultipleFramesOneChunk(t *testing.T) {
	frames, err := collect(t, chunked(
		"data: {\"type\":\"content\",\"content\":\"A\"}\ndata: {\"type\":\"content\",\"content\":\"B\"}\ndata: [DONE]\n",
	))

	assert.ErrorIs(t, err, ErrDone)
	require.Len(t, frames, 2)
	assert.Equal(t, "A", frames[0].Content)
	assert.Equal(t, "B", frames[1].Content)
}

func TestDecoder_SentinelStopsDecoding(t *testing.T) {
	dec := NewDecoder(chunked("data: [DONE]\n"))
	frame, err := dec.Next()
	assert.ErrorIs(t, err, ErrDone)
	assert.Nil(t, frame)
}

func TestDecoder_SkipsKeepAliveLines(t *testing.T) {
	frames, err := collect(t, chunked(
		"\n",
		": keep-alive\n",
		"event: ping\n",
		"data: {\"type\":\"content\",\"content\":\"ok\"}\n",
	))

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, frames, 1)
	assert.Equal(t, "ok", frames[0].Content)
}

func TestDecoder_SwallowsCorruptLine(t *testing.T) {
	frames, err := collect(t, chunked(
		"data: {\"type\":\"content\",\n",
		"data: {\"type\":\"content\",\"content\":\"after\"}\n",
	))

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, frames, 1, "corrupt line is dropped, stream continues")
	assert.Equal(t, "after", frames[0].Content)
}

func TestDecoder_CRLFTolerated(t *testing.T) {
	frames, err := collect(t, chunked("data: {\"type\":\"content\",\"content\":\"x\"}\r\n"))

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, frames, 1)
	assert.Equal(t, "x", frames[0].Content)
}

func TestDecoder_PartialTrailingLineDroppedAtEOF(t *testing.T) {
	frames, err := collect(t, chunked(
		"data: {\"type\":\"content\",\"content\":\"A\"}\n",
		"data: {\"type\":\"content\",\"cont", // stream dies mid-frame
	))

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, frames, 1)
	assert.Equal(t, "A", frames[0].Content)
}

func TestDecoder_StructuredFrames(t *testing.T) {
	frames, err := collect(t, chunked(
		"data: {\"type\":\"tool_processing\"}\n",
		"data: {\"type\":\"done\",\"conversation_id\":\"conv_1\",\"timestamp\":1700000000000}\n",
	))

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, frames, 2)
	assert.Equal(t, FrameToolProcessing, frames[0].Type)
	assert.Equal(t, FrameDone, frames[1].Type)
	assert.Equal(t, "conv_1", frames[1].ConversationID)
	assert.Equal(t, int64(1700000000000), frames[1].Timestamp)
}

func TestEncoderDecoder_RoundTrip(t *testing.T) {
	var sb strings.Builder
	enc := NewEncoder(&sb)
	require.NoError(t, enc.Encode(Frame{Type: FrameContent, Content: "Hi"}))
	require.NoError(t, enc.Done())

	frames, err := collect(t, strings.NewReader(sb.String()))
	assert.ErrorIs(t, err, ErrDone)
	require.Len(t, frames, 1)
	assert.Equal(t, "Hi", frames[0].Content)
}
