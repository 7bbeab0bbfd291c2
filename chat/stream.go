package chat

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/petal-labs/showroom/core"
	"github.com/petal-labs/showroom/internal/sse"
)

const msgEndedEarly = "stream ended before end event"

// Stream is a forward-only sequence of events from one chat turn. Events
// are read from the connection only as Next is called.
//
//	s, err := chatClient.Stream(ctx, req)
//	if err != nil { ... }
//	defer s.Close()
//	for s.Next() {
//		switch ev := s.Event().(type) {
//		case chat.ResponseChunk:
//			fmt.Print(ev.Data)
//		}
//	}
//	if err := s.Err(); err != nil { ... }
//
// Next, Event and Err must be called from one goroutine. Close may be
// called from any goroutine to abort the stream.
type Stream struct {
	ctx  context.Context
	op   string
	body io.ReadCloser
	rd   *sse.Reader

	event StreamEvent
	err   error
	done  bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newStream(ctx context.Context, op string, body io.ReadCloser, maxFrame int) *Stream {
	return &Stream{
		ctx:  ctx,
		op:   op,
		body: body,
		rd:   sse.NewReader(body, maxFrame),
	}
}

// Next advances to the next event. It returns false after a terminal event
// has been returned or the stream was closed. A failure while reading
// produces one final ErrorEvent; Err then reports the cause.
func (s *Stream) Next() bool {
	if s.done || s.closed.Load() {
		s.done = true
		return false
	}

	frame, err := s.rd.Next()
	if err != nil {
		if s.closed.Load() {
			s.done = true
			return false
		}
		s.fail(s.readError(err))
		return true
	}

	ev, err := decodeEvent(frame.Data, frame.Event)
	if err != nil {
		s.fail(core.DecodeError(s.op, err))
		return true
	}

	s.event = ev
	if ev.Terminal() {
		if e, ok := ev.(ErrorEvent); ok {
			s.err = &core.APIError{
				Op:      s.op,
				Code:    "stream_error",
				Message: e.Message,
				Err:     core.ErrServer,
			}
		}
		s.finish()
	}
	return true
}

// Event returns the event produced by the last call to Next.
func (s *Stream) Event() StreamEvent {
	return s.event
}

// Err returns the error that ended the stream, or nil if it ended with End
// or has not ended yet.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	return s.close(nil)
}

// close releases the connection, reporting err as the call outcome when
// the body supports it.
func (s *Stream) close(err error) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if sc, ok := s.body.(core.StreamCloser); ok && err != nil {
			s.closeErr = sc.CloseWithError(err)
			return
		}
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// Events returns the remaining events as an iterator. The stream is closed
// when iteration stops, including when the loop exits early.
func (s *Stream) Events() iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Event()) {
				return
			}
		}
	}
}

// Collect drains s and returns the concatenated response chunks. The
// stream is closed on return. Non-terminal ErrorEvents for unknown event
// types are skipped.
func Collect(s *Stream) (string, error) {
	var b strings.Builder
	for ev := range s.Events() {
		if chunk, ok := ev.(ResponseChunk); ok {
			b.WriteString(chunk.Data)
		}
	}
	return b.String(), s.Err()
}

func (s *Stream) fail(err error) {
	s.err = err
	msg := err.Error()
	var apiErr *core.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	s.event = ErrorEvent{Message: msg}
	s.finish()
}

func (s *Stream) finish() {
	s.done = true
	s.close(s.err)
}

func (s *Stream) readError(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return &core.APIError{
			Op:      s.op,
			Code:    "stream_eof",
			Message: msgEndedEarly,
			Err:     core.ErrTransport,
			Cause:   io.ErrUnexpectedEOF,
		}
	case errors.Is(err, sse.ErrFrameTooLarge):
		return &core.APIError{
			Op:      s.op,
			Code:    "frame_too_large",
			Message: err.Error(),
			Err:     core.ErrDecode,
			Cause:   err,
		}
	default:
		return core.MapTransportError(s.ctx, s.op, err)
	}
}
