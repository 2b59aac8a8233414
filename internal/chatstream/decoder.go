package chatstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ErrDone is returned by Next once the [DONE] sentinel line is read.
var ErrDone = errors.New("chatstream: done sentinel")

// Decoder reassembles frames from a chunked byte stream. Frame
// boundaries do not align with chunk boundaries, so undecoded bytes are
// buffered across reads and only complete lines are processed; the
// trailing partial line waits for the next chunk.
type Decoder struct {
	r       io.Reader
	buf     []byte
	scratch []byte
	readErr error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:       r,
		scratch: make([]byte, 4096),
	}
}

// Next returns the next decoded frame. It returns ErrDone for the
// [DONE] sentinel and io.EOF when the stream ends without one. Empty
// lines, lines without the frame prefix and lines whose JSON does not
// parse are all skipped silently.
func (d *Decoder) Next() (*Frame, error) {
	for {
		if line, ok := d.nextLine(); ok {
			frame, skip, err := decodeLine(line)
			if skip {
				continue
			}
			return frame, err
		}

		if d.readErr != nil {
			// leftover partial line is dropped: it can never complete
			return nil, d.readErr
		}

		n, err := d.r.Read(d.scratch)
		if n > 0 {
			d.buf = append(d.buf, d.scratch[:n]...)
		}
		if err != nil {
			d.readErr = err
		}
	}
}

func (d *Decoder) nextLine() (string, bool) {
	idx := bytes.IndexByte(d.buf, '\n')
	if idx < 0 {
		return "", false
	}
	line := string(d.buf[:idx])
	d.buf = d.buf[idx+1:]
	return line, true
}

// decodeLine returns skip=true for lines that carry no frame.
func decodeLine(line string) (*Frame, bool, error) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, FramePrefix) {
		return nil, true, nil
	}

	payload := line[len(FramePrefix):]
	if payload == DoneSentinel {
		return nil, false, ErrDone
	}

	var frame Frame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		// tolerated: a frame split mid-JSON by an upstream that broke
		// the line invariant looks like garbage here
		return nil, true, nil
	}
	return &frame, false, nil
}
