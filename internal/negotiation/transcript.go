package negotiation

import "sync"

// Transcript is the append-only message log of one session. Readers get
// copies, so a reader never observes a half-appended message.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
	watchers map[chan Message]struct{}
	closed   bool
}

func NewTranscript() *Transcript {
	return &Transcript{watchers: map[chan Message]struct{}{}}
}

// append assigns the next seq and fans the message out to subscribers.
// Slow subscribers miss live messages and are expected to catch up with After.
func (t *Transcript) append(m Message) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	m.Seq = int64(len(t.messages) + 1)
	t.messages = append(t.messages, m.clone())
	for ch := range t.watchers {
		select {
		case ch <- m.clone():
		default:
		}
	}
	return m
}

func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneMessages(t.messages)
}

func (t *Transcript) After(seq int64) []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= int64(len(t.messages)) {
		return nil
	}
	return cloneMessages(t.messages[seq:])
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

func (t *Transcript) Last() (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1].clone(), true
}

// Subscribe returns a channel of live messages. The channel is closed when
// the transcript closes or on Unsubscribe.
func (t *Transcript) Subscribe() chan Message {
	ch := make(chan Message, 32)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		close(ch)
		return ch
	}
	t.watchers[ch] = struct{}{}
	return ch
}

func (t *Transcript) Unsubscribe(ch chan Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.watchers[ch]; ok {
		delete(t.watchers, ch)
		close(ch)
	}
}

// Close stops live delivery. Messages stay readable.
func (t *Transcript) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for ch := range t.watchers {
		close(ch)
		delete(t.watchers, ch)
	}
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.clone()
	}
	return out
}
