package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding acknowledged submissions.
	StreamName = "carepath_submissions"

	// MaxAge bounds how long acknowledgements are retained.
	MaxAge = 24 * time.Hour
)

// SubjectForFlow returns the subject receipts of flow are published on.
// Example: "carepath.claim.submitted"
func SubjectForFlow(flow string) string {
	return fmt.Sprintf("carepath.%s.submitted", flow)
}

// SubjectAllFlows matches submissions of every flow.
const SubjectAllFlows = "carepath.*.submitted"

// SetupStream creates or updates the submissions stream. It is memory backed;
// acknowledgements do not outlive the process.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectAllFlows},
		Storage:  jetstream.MemoryStorage,
		MaxAge:   MaxAge,
	})
}
