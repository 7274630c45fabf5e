// Package notify publishes evidence lifecycle events to NATS JetStream for
// downstream consumers (the AI-analysis pipeline, audit sinks). Publishing
// happens after persistence and is best-effort: a failed publish is logged,
// never propagated, because consumers can always reconcile from the store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const streamName = "CASETRACE_EVIDENCE"

// Subjects follow casetrace.evidence.{event}.
const (
	SubjectAnchored = "casetrace.evidence.anchored"
	SubjectBridged  = "casetrace.evidence.bridged"
	SubjectCustody  = "casetrace.evidence.custody"
)

// Publisher emits evidence events to JetStream.
type Publisher struct {
	js     jetstream.JetStream
	logger *zap.Logger
}

// New connects a Publisher to JetStream and ensures the evidence stream
// exists.
func New(nc *nats.Conn, logger *zap.Logger) (*Publisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"casetrace.evidence.>"},
		Storage:  jetstream.FileStorage,
	}); err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}
	return &Publisher{js: js, logger: logger}, nil
}

// Publish emits one event. Errors are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("marshal event payload", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.logger.Warn("publish event", zap.String("subject", subject), zap.Error(err))
	}
}
