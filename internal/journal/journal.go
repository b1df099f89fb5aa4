// Package journal records wizard events to JetStream and rebuilds a run's
// progress from them.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/mark3labs/stepwise/internal/nats"
	"github.com/mark3labs/stepwise/internal/wizard"
)

// Record is one journaled event.
type Record struct {
	Seq       uint64           `json:"seq,omitempty"` // stream sequence, set on load
	Timestamp time.Time        `json:"timestamp"`
	Instance  string           `json:"instance"`
	Kind      wizard.EventKind `json:"kind"`
	StepID    string           `json:"step_id,omitempty"`
	From      string           `json:"from,omitempty"`
	To        string           `json:"to,omitempty"`
	Valid     *bool            `json:"valid,omitempty"`
	Message   string           `json:"message,omitempty"`
	Data      json.RawMessage  `json:"data,omitempty"`
}

// queueSize bounds how far publishing may lag behind the wizard. Records
// beyond it are dropped rather than blocking the emitter.
const queueSize = 256

// Attach journals every event emitted on ch under instance until the
// returned detach func is called. Listeners never wait on publishing: when
// the queue is full the record is dropped with a warning. Detach
// unsubscribes and blocks until queued records are published. Publish
// failures are logged.
func Attach(ctx context.Context, js jetstream.JetStream, instance string, ch *wizard.Channel) (detach func()) {
	log := logger.With("instance", instance)
	queue := make(chan Record, queueSize)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for rec := range queue {
			if err := publish(ctx, js, rec); err != nil {
				log.Warn("Journal: %v", err)
			}
		}
	}()

	var (
		mu     sync.Mutex
		closed bool
	)
	subs := ch.SubscribeAll(func(ev wizard.Event) {
		rec := recordOf(instance, ev)
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case queue <- rec:
		default:
			log.Warn("Journal queue full, dropping %s record", rec.Kind)
		}
	})
	log.Debug("Journal attached")

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, sub := range subs {
				ch.Unsubscribe(sub)
			}
			mu.Lock()
			closed = true
			close(queue)
			mu.Unlock()
			<-done
			log.Debug("Journal detached")
		})
	}
}

func publish(ctx context.Context, js jetstream.JetStream, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", rec.Kind, err)
	}
	subject := nats.SubjectForEvent(rec.Instance, string(rec.Kind))
	if _, err := js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// recordOf converts an event to its journal form. Validate requests keep
// only the step id.
func recordOf(instance string, ev wizard.Event) Record {
	rec := Record{
		Timestamp: time.Now(),
		Instance:  instance,
		Kind:      ev.Kind(),
	}
	switch e := ev.(type) {
	case wizard.ValidateRequestEvent:
		rec.StepID = e.StepID
	case wizard.ValidationStatusEvent:
		valid := e.Valid
		rec.StepID = e.StepID
		rec.Valid = &valid
	case wizard.StepDataUpdateEvent:
		rec.StepID = e.StepID
		rec.Data = encode(e.Data)
	case wizard.NavigateEvent:
		rec.From = e.From
		rec.To = e.To
	case wizard.ErrorEvent:
		rec.Message = e.Message
	case wizard.CompleteEvent:
		rec.Data = encode(e.StepData)
	}
	return rec
}

func encode(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Journal: dropping unencodable data: %v", err)
		return nil
	}
	return data
}

// Load reads every record of instance in publish order.
func Load(ctx context.Context, stream jetstream.Stream, instance string) ([]Record, error) {
	logger.Debug("Loading journal for instance: %s", instance)

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: nats.SubjectForInstance(instance),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	const batchSize = 1000
	var records []Record
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}

		count := 0
		for msg := range msgs.Messages() {
			count++
			meta, _ := msg.Metadata()

			var rec Record
			if err := json.Unmarshal(msg.Data(), &rec); err != nil {
				if meta != nil {
					logger.Warn("Skipping malformed record (seq=%d): %v", meta.Sequence.Stream, err)
					fmt.Fprintf(os.Stderr, "Warning: Skipping malformed record (seq=%d): %v\n", meta.Sequence.Stream, err)
				}
				_ = msg.Ack()
				continue
			}
			if meta != nil {
				rec.Seq = meta.Sequence.Stream
			}
			records = append(records, rec)
			_ = msg.Ack()
		}

		if count < batchSize {
			break
		}
	}

	logger.Debug("Loaded %d records for instance %s", len(records), instance)
	return records, nil
}

// Instances lists the runs that have journaled events, sorted.
func Instances(ctx context.Context, stream jetstream.Stream) ([]string, error) {
	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(nats.SubjectForInstance("*")))
	if err != nil {
		return nil, fmt.Errorf("failed to read stream info: %w", err)
	}

	seen := make(map[string]struct{})
	for subject := range info.State.Subjects {
		parts := strings.Split(subject, ".")
		if len(parts) >= 3 {
			seen[parts[1]] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
