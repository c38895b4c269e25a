// Package translate holds the queue side of the pipeline: the at-least-once
// consumer that turns queued jobs into delivered translations, and the HTTP
// clients for the detection and translation backends.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hermes/internal/domain"
	"hermes/internal/metrics"
)

// DeadLetterer routes a permanently failed record out of the retry path.
// Satisfied by *queue.Queue.
type DeadLetterer interface {
	DeadLetter(rec domain.QueueRecord, reason error)
}

// ConsumerConfig configures the consumer.
type ConsumerConfig struct {
	Translator domain.Translator
	Gateway    domain.ChatGateway
	DeadLetter DeadLetterer
	Logger     *slog.Logger
}

// Consumer drains translation jobs. Duplicate delivery of the same job is
// harmless: it re-sends an identical translation, nothing more. No local
// caching or deduplication.
type Consumer struct {
	cfg    ConsumerConfig
	logger *slog.Logger
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	return &Consumer{cfg: cfg, logger: cfg.Logger}
}

// Handle processes one batch of queue records. Structurally broken payloads
// are dead-lettered immediately; backend and delivery failures are returned
// so the queue's retry policy applies to the batch.
func (c *Consumer) Handle(ctx context.Context, records []domain.QueueRecord) error {
	var errs []error
	for _, rec := range records {
		if err := c.handleOne(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", rec.MessageID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Consumer) handleOne(ctx context.Context, rec domain.QueueRecord) error {
	var job domain.TranslationJob
	if err := json.Unmarshal(rec.Payload, &job); err != nil {
		c.cfg.DeadLetter.DeadLetter(rec, fmt.Errorf("%w: %v", domain.ErrMalformedJob, err))
		metrics.JobsDeadLettered.Inc()
		return nil
	}
	if !job.Valid() {
		c.cfg.DeadLetter.DeadLetter(rec, fmt.Errorf("%w: missing required fields", domain.ErrMalformedJob))
		metrics.JobsDeadLettered.Inc()
		return nil
	}

	start := time.Now()
	translated, err := c.cfg.Translator.Translate(ctx, job.Text, job.SourceLanguage, job.TargetLanguage)
	if err != nil {
		c.logger.Warn("translation backend failed",
			"workspace", job.Workspace,
			"channel", job.ChannelID,
			"recipient", job.RecipientID,
			"source", job.SourceLanguage,
			"target", job.TargetLanguage,
			"attempt", rec.Attempt,
			"err", err,
		)
		return fmt.Errorf("translate: %w", err)
	}
	metrics.TranslateLatency.Observe(time.Since(start).Seconds())

	if err := c.cfg.Gateway.PostEphemeral(ctx, job.ChannelID, job.RecipientID, translated); err != nil {
		c.logger.Warn("delivery failed",
			"workspace", job.Workspace,
			"channel", job.ChannelID,
			"recipient", job.RecipientID,
			"attempt", rec.Attempt,
			"err", err,
		)
		return err
	}

	metrics.JobsDelivered.Inc()
	c.logger.Debug("translation delivered",
		"workspace", job.Workspace,
		"channel", job.ChannelID,
		"recipient", job.RecipientID,
		"target", job.TargetLanguage,
	)
	return nil
}
