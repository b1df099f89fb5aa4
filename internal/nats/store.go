package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding every journaled event.
	StreamName = "stepwise_events"

	subjectRoot = "stepwise"
)

// ErrInvalidInstance is returned for run ids that cannot be used as a
// subject token.
var ErrInvalidInstance = errors.New("invalid instance id")

// ValidInstance checks that id is a single subject token: non-empty, with
// no dots, wildcards or whitespace.
func ValidInstance(id string) error {
	if id == "" || strings.ContainsAny(id, ".*> \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidInstance, id)
	}
	return nil
}

// SubjectForInstance returns the wildcard subject of one wizard run.
// Example: "stepwise.3f1c....>"
func SubjectForInstance(instance string) string {
	return fmt.Sprintf("%s.%s.>", subjectRoot, instance)
}

// SubjectForEvent returns the subject of one event kind in a run.
// Example: "stepwise.3f1c....navigate"
func SubjectForEvent(instance, kind string) string {
	return fmt.Sprintf("%s.%s.%s", subjectRoot, instance, kind)
}

// SetupStream creates or updates the events stream with 30-day retention.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subjectRoot + ".>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
}

// PurgeInstance removes every journaled event of instance from stream.
func PurgeInstance(ctx context.Context, stream jetstream.Stream, instance string) error {
	if err := ValidInstance(instance); err != nil {
		return err
	}
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(SubjectForInstance(instance))); err != nil {
		return fmt.Errorf("purging %s: %w", instance, err)
	}
	return nil
}
