package chatstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Encoder writes frames in the exact wire format the decoder accepts.
// When the destination is an http.ResponseWriter each frame is flushed
// immediately so the browser sees fragments as they arrive.
type Encoder struct {
	w     io.Writer
	flush http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flush = f
	}
	return e
}

func (e *Encoder) Encode(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return e.writeLine(string(payload))
}

// Done writes the [DONE] sentinel line.
func (e *Encoder) Done() error {
	return e.writeLine(DoneSentinel)
}

func (e *Encoder) writeLine(payload string) error {
	if _, err := io.WriteString(e.w, FramePrefix+payload+"\n"); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if e.flush != nil {
		e.flush.Flush()
	}
	return nil
}
