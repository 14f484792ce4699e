package chat

import "strings"

// Sink receives assistant output as it is produced. The engine runs the
// same pipeline for streaming and buffered responses; only the sink
// differs. Write is called once per delta in order, End exactly once
// after the last delta regardless of outcome.
type Sink interface {
	Write(delta string) error
	End()
}

// NopSink discards output. Used when the caller only needs the persisted
// result.
type NopSink struct{}

func (NopSink) Write(string) error { return nil }
func (NopSink) End()               {}

// BufferSink accumulates deltas in memory for non-streaming responses
type BufferSink struct {
	b strings.Builder
}

func (s *BufferSink) Write(delta string) error {
	s.b.WriteString(delta)
	return nil
}

func (s *BufferSink) End() {}

func (s *BufferSink) String() string {
	return s.b.String()
}

// channelSink forwards deltas over a bounded channel. When the consumer
// falls behind and the buffer fills, fragments are dropped rather than
// stalling the upstream read; the engine still accumulates the full reply
// for persistence.
type channelSink struct {
	ch     chan string
	closed bool
}

func newChannelSink() *channelSink {
	return &channelSink{ch: make(chan string, 256)}
}

func (s *channelSink) Write(delta string) error {
	select {
	case s.ch <- delta:
	default:
	}
	return nil
}

func (s *channelSink) End() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
