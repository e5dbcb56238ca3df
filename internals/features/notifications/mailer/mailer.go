package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Transport delivers one message.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// LogTransport writes messages to the log instead of sending them. Used when
// SMTP is not configured.
type LogTransport struct {
	Log *zap.Logger
}

func (t LogTransport) Send(ctx context.Context, m Message) error {
	t.Log.Info("mail (not sent, smtp disabled)",
		zap.Strings("to", m.To),
		zap.String("subject", m.Subject),
	)
	return nil
}

// RecordingTransport keeps every message in memory. Err, when set, is
// returned from Send instead of recording.
type RecordingTransport struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (t *RecordingTransport) Send(ctx context.Context, m Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.sent = append(t.sent, m)
	return nil
}

func (t *RecordingTransport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.sent))
	copy(out, t.sent)
	return out
}
