package notify

import (
	"context"
	"sync"

	"hrsync/internal/hrsync"
)

// LogTransport writes messages to the logger instead of sending them.
type LogTransport struct {
	logger hrsync.Logger
}

func NewLogTransport(logger hrsync.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.Info("notification", "subject", msg.Subject, "body", msg.Body)
	return nil
}

// MemoryTransport records messages. Safe for concurrent use.
type MemoryTransport struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, fails every Send.
	Err error
}

func NewMemoryTransport() *MemoryTransport { return &MemoryTransport{} }

func (t *MemoryTransport) Send(ctx context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.messages = append(t.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (t *MemoryTransport) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}
