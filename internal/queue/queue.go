// Package queue provides an in-process, at-least-once job queue with
// per-message retry backoff and a dead-letter store. Publishing is decoupled
// from consumption so webhook latency is bounded by the enqueue, never by the
// downstream translation work.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hermes/internal/domain"
	"hermes/internal/metrics"

	"github.com/google/uuid"
)

const publishTimeout = 10 * time.Second

// Handler drains one batch of records. Returning an error requeues every
// record in the batch that was not dead-lettered during handling.
type Handler func(ctx context.Context, records []domain.QueueRecord) error

// DeadLetter is a permanently failed record with its terminal reason.
type DeadLetter struct {
	Record domain.QueueRecord
	Reason error
	At     time.Time
}

// Config tunes queue behavior.
type Config struct {
	BufferSize   int           // per-topic channel capacity
	BatchSize    int           // max records per handler invocation
	MaxAttempts  int           // delivery attempts before dead-lettering
	RetryBackoff time.Duration // base backoff, multiplied by attempt count
	Logger       *slog.Logger
}

// Queue is an in-memory topic queue.
type Queue struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	topics map[string]chan domain.QueueRecord
	dead   []DeadLetter
	// message ids dead-lettered mid-batch, so the requeue pass skips them
	deadIDs map[string]struct{}
	closed  bool
}

func New(cfg Config) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Queue{
		cfg:     cfg,
		logger:  cfg.Logger,
		topics:  make(map[string]chan domain.QueueRecord),
		deadIDs: make(map[string]struct{}),
	}
}

func (q *Queue) topic(name string) chan domain.QueueRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.topics[name]
	if !ok {
		ch = make(chan domain.QueueRecord, q.cfg.BufferSize)
		q.topics[name] = ch
	}
	return ch
}

// Publish enqueues a payload on the topic and returns the assigned message id.
// Blocks up to 10 seconds when the topic is full instead of dropping.
func (q *Queue) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	rec := domain.QueueRecord{
		MessageID:  uuid.NewString(),
		Topic:      topic,
		Attempt:    1,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}

	ch := q.topic(topic)
	select {
	case ch <- rec:
		metrics.QueueDepth.Add(1)
		return rec.MessageID, nil
	default:
	}

	q.logger.Warn("topic full, waiting", "topic", topic)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case ch <- rec:
		metrics.QueueDepth.Add(1)
		return rec.MessageID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", context.DeadlineExceeded
	}
}

// DeadLetter routes a record to the dead-letter store instead of retrying.
// Safe to call from inside a handler; the requeue pass will skip the record.
func (q *Queue) DeadLetter(rec domain.QueueRecord, reason error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, DeadLetter{Record: rec, Reason: reason, At: time.Now()})
	q.deadIDs[rec.MessageID] = struct{}{}
	q.logger.Error("record dead-lettered",
		"topic", rec.Topic,
		"message_id", rec.MessageID,
		"attempt", rec.Attempt,
		"reason", reason,
	)
}

// DeadLetters returns a snapshot of the dead-letter store.
func (q *Queue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out
}

// Depth returns the number of records waiting on a topic.
func (q *Queue) Depth(topic string) int {
	return len(q.topic(topic))
}

// Consume drains the topic until ctx is done, invoking handler with batches
// of up to BatchSize records. Failed batches are redelivered with backoff;
// records exceeding MaxAttempts are dead-lettered.
func (q *Queue) Consume(ctx context.Context, topic string, handler Handler) {
	ch := q.topic(topic)
	for {
		// fast-exit so shutdown wins over queued work
		select {
		case <-ctx.Done():
			return
		default:
		}

		var batch []domain.QueueRecord
		select {
		case <-ctx.Done():
			return
		case rec := <-ch:
			batch = append(batch, rec)
		}

		// Fill the rest of the batch without blocking.
	fill:
		for len(batch) < q.cfg.BatchSize {
			select {
			case rec := <-ch:
				batch = append(batch, rec)
			default:
				break fill
			}
		}
		metrics.QueueDepth.Add(int64(-len(batch)))

		if err := handler(ctx, batch); err != nil {
			q.logger.Warn("batch failed, scheduling redelivery",
				"topic", topic, "records", len(batch), "err", err)
			q.requeue(ctx, batch, err)
		}
	}
}

// requeue schedules redelivery for every record in the batch that was not
// dead-lettered by the handler, incrementing its attempt count.
func (q *Queue) requeue(ctx context.Context, batch []domain.QueueRecord, cause error) {
	for _, rec := range batch {
		q.mu.Lock()
		_, dropped := q.deadIDs[rec.MessageID]
		if dropped {
			delete(q.deadIDs, rec.MessageID)
		}
		q.mu.Unlock()
		if dropped {
			continue
		}

		if rec.Attempt >= q.cfg.MaxAttempts {
			q.DeadLetter(rec, cause)
			continue
		}

		rec.Attempt++
		delay := q.cfg.RetryBackoff * time.Duration(rec.Attempt-1)
		q.logger.Debug("redelivery scheduled",
			"topic", rec.Topic,
			"message_id", rec.MessageID,
			"attempt", rec.Attempt,
			"delay", delay,
		)
		go q.redeliver(ctx, rec, delay)
	}
}

func (q *Queue) redeliver(ctx context.Context, rec domain.QueueRecord, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	select {
	case q.topic(rec.Topic) <- rec:
		metrics.QueueDepth.Add(1)
	case <-ctx.Done():
	}
}
