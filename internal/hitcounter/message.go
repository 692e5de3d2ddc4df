package hitcounter

import "clipstash/internal/domain"

type messageKind uint8

const (
	msgHit messageKind = iota + 1
	msgFlush
)

func (k messageKind) String() string {
	switch k {
	case msgHit:
		return "hit"
	case msgFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// message is the only value sent from a Handle to the aggregator loop.
// A hit carries code and delta. A flush may carry done, which the loop
// closes once every hit enqueued before the flush has been committed.
type message struct {
	kind  messageKind
	code  domain.ShortCode
	delta uint64
	done  chan struct{}
}

func hitMessage(code domain.ShortCode, delta uint64) message {
	return message{kind: msgHit, code: code, delta: delta}
}

func flushMessage(done chan struct{}) message {
	return message{kind: msgFlush, done: done}
}
