package wire

import (
	"bytes"
	"io"
)

// Delimiter terminates every frame on the wire.
const Delimiter = "---EOM---"

const readChunk = 64 * 1024

// Framer splits a byte stream into delimiter-terminated frames. A single
// read may yield several complete frames plus a partial tail; complete but
// unprocessed frames are queued for the next call and partial bytes are
// kept until a later read completes them.
type Framer struct {
	r       io.Reader
	tail    []byte
	pending [][]byte
}

func NewFramer(r io.Reader) *Framer {
	return &Framer{r: r}
}

// Next returns the next complete frame, reading from the stream as needed.
func (f *Framer) Next() ([]byte, error) {
	for {
		if len(f.pending) > 0 {
			frame := f.pending[0]
			f.pending = f.pending[1:]
			return frame, nil
		}
		buf := make([]byte, readChunk)
		n, err := f.r.Read(buf)
		if n > 0 {
			f.feed(buf[:n])
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// Pending reports whether a complete frame is already buffered.
func (f *Framer) Pending() bool {
	return len(f.pending) > 0
}

func (f *Framer) feed(data []byte) {
	f.tail = append(f.tail, data...)
	for {
		idx := bytes.Index(f.tail, []byte(Delimiter))
		if idx < 0 {
			return
		}
		frame := append([]byte(nil), f.tail[:idx]...)
		f.tail = f.tail[idx+len(Delimiter):]
		if len(bytes.TrimSpace(frame)) > 0 {
			f.pending = append(f.pending, frame)
		}
	}
}

// Frame appends the delimiter to a payload for sending.
func Frame(payload []byte) []byte {
	return append(append([]byte(nil), payload...), []byte(Delimiter)...)
}
