// Package submission acknowledges submitted receipts on an in-process
// JetStream stream and lists what has been acknowledged.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/nats"
	"github.com/mark3labs/carepath/internal/wizard"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrNoReference is returned when acknowledging a receipt without a reference.
var ErrNoReference = errors.New("receipt has no reference")

// Record is the acknowledged form of a receipt as stored on the stream.
type Record struct {
	Flow        string         `json:"flow"`
	Reference   string         `json:"reference"`
	Submitter   string         `json:"submitter,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Fields      map[string]any `json:"fields"`
	Sequence    uint64         `json:"sequence,omitempty"`
}

// Ack confirms that a receipt was recorded.
type Ack struct {
	Reference string    `json:"reference"`
	Sequence  uint64    `json:"sequence"`
	At        time.Time `json:"at"`
}

// Desk publishes receipts and reads them back.
type Desk struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	now    func() time.Time
}

// NewDesk returns a desk over an existing stream.
func NewDesk(js jetstream.JetStream, stream jetstream.Stream) *Desk {
	return &Desk{js: js, stream: stream, now: time.Now}
}

// Open starts an embedded server and returns a desk over it. The returned
// close function shuts the server down.
func Open(ctx context.Context) (*Desk, func() error, error) {
	emb, err := nats.Start(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("starting acknowledgement desk: %w", err)
	}
	stream, err := emb.Stream(ctx)
	if err != nil {
		_ = emb.Close()
		return nil, nil, fmt.Errorf("opening submissions stream: %w", err)
	}
	return NewDesk(emb.JS, stream), emb.Close, nil
}

// Acknowledge publishes r on its flow's subject.
func (d *Desk) Acknowledge(ctx context.Context, r wizard.Receipt, submitter string) (Ack, error) {
	if r.Reference == "" {
		return Ack{}, ErrNoReference
	}
	rec := Record{
		Flow:        r.Flow,
		Reference:   r.Reference,
		Submitter:   submitter,
		SubmittedAt: r.SubmittedAt,
		Fields:      r.Fields.Map(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Ack{}, fmt.Errorf("marshaling record: %w", err)
	}

	subject := nats.SubjectForFlow(flowToken(r.Flow))
	logger.Debug("Acknowledging %s on %s", r.Reference, subject)
	pub, err := d.js.Publish(ctx, subject, data, jetstream.WithMsgID(r.Reference))
	if err != nil {
		logger.Error("Failed to acknowledge %s: %v", r.Reference, err)
		return Ack{}, fmt.Errorf("publishing %s: %w", r.Reference, err)
	}
	if pub.Duplicate {
		logger.Warn("Receipt %s was already acknowledged (seq=%d)", r.Reference, pub.Sequence)
	}
	return Ack{Reference: r.Reference, Sequence: pub.Sequence, At: d.now()}, nil
}

// List returns acknowledged records of flow in stream order. An empty flow
// lists every flow.
func (d *Desk) List(ctx context.Context, flow string) ([]Record, error) {
	filter := nats.SubjectAllFlows
	if flow != "" {
		filter = nats.SubjectForFlow(flowToken(flow))
	}

	consumer, err := d.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: filter,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	defer func() {
		if err := d.stream.DeleteConsumer(context.Background(), consumer.CachedInfo().Name); err != nil {
			logger.Debug("Deleting list consumer: %v", err)
		}
	}()

	const batchSize = 256
	var out []Record
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}
		count := 0
		for msg := range msgs.Messages() {
			count++
			var rec Record
			if err := json.Unmarshal(msg.Data(), &rec); err != nil {
				logger.Warn("Skipping malformed submission on %s: %v", msg.Subject(), err)
				_ = msg.Ack()
				continue
			}
			if meta, err := msg.Metadata(); err == nil {
				rec.Sequence = meta.Sequence.Stream
			}
			out = append(out, rec)
			_ = msg.Ack()
		}
		if count < batchSize {
			break
		}
	}
	return out, nil
}

// flowToken keeps flow names usable as a single subject token.
func flowToken(flow string) string {
	if t := slug.Make(flow); t != "" {
		return t
	}
	return "unknown"
}
