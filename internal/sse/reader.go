// Package sse reads text/event-stream frames from an io.Reader.
//
// The reader is pull-driven: it reads from the underlying stream only when
// Next is called and never holds more than one frame in memory.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// DefaultMaxFrameSize bounds a single frame when NewReader is given zero.
const DefaultMaxFrameSize = 1 << 20

// initialBufferSize is the read buffer a Reader starts with. Longer lines
// are accumulated separately, up to the frame bound.
const initialBufferSize = 4096

// ErrFrameTooLarge is returned when a line or frame exceeds the size bound.
var ErrFrameTooLarge = errors.New("sse: frame exceeds maximum size")

// Frame is one dispatched event.
type Frame struct {
	Event string // value of the last "event:" field, empty if none
	Data  string // "data:" lines joined by "\n"
	ID    string
}

// Reader decodes frames incrementally. Frames may span any number of
// underlying reads. A Reader is not safe for concurrent use.
type Reader struct {
	br   *bufio.Reader
	max  int
	line []byte // holds a line longer than the read buffer

	event   string
	id      string
	data    strings.Builder
	hasData bool
}

// NewReader returns a Reader over r. maxFrame bounds both a single line and
// the accumulated data of a frame; zero selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxFrame int) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Reader{br: bufio.NewReaderSize(r, min(initialBufferSize, maxFrame+2)), max: maxFrame}
}

// Next returns the next complete frame. At end of input, a frame that has
// data but no closing blank line is still returned; an unterminated final
// line is discarded. After the last frame Next returns io.EOF. Any other
// read error is returned as is.
func (r *Reader) Next() (Frame, error) {
	for {
		line, err := r.readLine()
		switch {
		case errors.Is(err, ErrFrameTooLarge):
			r.reset()
			return Frame{}, err
		case err == io.EOF:
			if r.hasData {
				return r.dispatch(), nil
			}
			r.reset()
			return Frame{}, io.EOF
		case err != nil:
			return Frame{}, err
		}

		line = bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'})
		if len(line) == 0 {
			if r.hasData {
				return r.dispatch(), nil
			}
			r.reset()
			continue
		}
		if err := r.field(line); err != nil {
			return Frame{}, err
		}
	}
}

// readLine returns the next line including its terminator. A line may be
// up to max bytes plus a CRLF terminator; anything longer is
// ErrFrameTooLarge. The returned slice is valid until the next call.
func (r *Reader) readLine() ([]byte, error) {
	limit := r.max + 2
	r.line = r.line[:0]
	for {
		chunk, err := r.br.ReadSlice('\n')
		if len(r.line) == 0 && !errors.Is(err, bufio.ErrBufferFull) {
			if len(chunk) > limit {
				return nil, ErrFrameTooLarge
			}
			return chunk, err
		}
		if len(r.line)+len(chunk) > limit {
			r.line = r.line[:0]
			return nil, ErrFrameTooLarge
		}
		r.line = append(r.line, chunk...)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return r.line, err
		}
	}
}

func (r *Reader) field(line []byte) error {
	if line[0] == ':' {
		return nil
	}
	name, value, found := bytes.Cut(line, []byte{':'})
	if found {
		value = bytes.TrimPrefix(value, []byte{' '})
	}

	switch string(name) {
	case "data":
		if r.hasData {
			r.data.WriteByte('\n')
		}
		r.data.Write(value)
		r.hasData = true
		if r.data.Len() > r.max {
			r.reset()
			return ErrFrameTooLarge
		}
	case "event":
		r.event = string(value)
	case "id":
		if !bytes.ContainsRune(value, 0) {
			r.id = string(value)
		}
	}
	return nil
}

func (r *Reader) dispatch() Frame {
	f := Frame{Event: r.event, Data: r.data.String(), ID: r.id}
	r.reset()
	return f
}

func (r *Reader) reset() {
	r.event = ""
	r.id = ""
	r.data.Reset()
	r.hasData = false
}
