// Package dispatch fans one channel message out into per-recipient
// translation jobs. It runs synchronously within the webhook request up
// through the queue publish; translation itself is deferred to the consumer
// so webhook latency never depends on the translation backend.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"hermes/internal/domain"
	"hermes/internal/metrics"
)

// Config configures the dispatcher.
type Config struct {
	Gateway  domain.ChatGateway
	Store    domain.PreferenceStore
	Detector domain.Detector
	Queue    domain.JobPublisher
	Topic    string

	// Texts shorter than this skip detection and assume DefaultSource.
	// A cost heuristic, not a detection guarantee.
	ShortTextThreshold int
	DefaultSource      string

	Logger *slog.Logger
}

// Dispatcher publishes translation jobs for a channel message.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Dispatcher {
	if cfg.ShortTextThreshold <= 0 {
		cfg.ShortTextThreshold = 20
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = domain.DefaultLanguage
	}
	if cfg.Topic == "" {
		cfg.Topic = "translate"
	}
	return &Dispatcher{cfg: cfg, logger: cfg.Logger}
}

// Dispatch resolves membership and preferences, detects the message's
// language, and publishes one job per member whose preference differs,
// excluding the speaker. Membership, preference, or detection failures are
// fatal for the whole dispatch. A single failed publish is not: remaining
// recipients still get their jobs and the failure is logged per recipient.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.MessageEvent, workspace string) error {
	members, err := d.cfg.Gateway.ChannelMembers(ctx, ev.ChannelID)
	if err != nil {
		return fmt.Errorf("resolve channel membership: %w", err)
	}

	prefs, err := d.cfg.Store.BatchGet(ctx, workspace, members)
	if err != nil {
		return fmt.Errorf("resolve preferences: %w", err)
	}

	source, err := d.sourceLanguage(ctx, ev.Text)
	if err != nil {
		return fmt.Errorf("detect language: %w", err)
	}

	published := 0
	failed := 0
	for _, pref := range prefs {
		if pref.UserID == ev.UserID {
			continue
		}
		if pref.Language == source {
			continue
		}

		job := domain.TranslationJob{
			RecipientID:    pref.UserID,
			TargetLanguage: pref.Language,
			Workspace:      workspace,
			Text:           ev.Text,
			ChannelID:      ev.ChannelID,
			SourceLanguage: source,
		}
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}

		id, err := d.cfg.Queue.Publish(ctx, d.cfg.Topic, payload)
		if err != nil {
			// Best-effort fan-out: siblings still publish.
			failed++
			metrics.PublishFailures.Inc()
			d.logger.Error("job publish failed",
				"workspace", workspace,
				"channel", ev.ChannelID,
				"recipient", pref.UserID,
				"target", pref.Language,
				"err", err,
			)
			continue
		}
		published++
		metrics.JobsPublished.Inc()
		d.logger.Debug("job published",
			"message_id", id,
			"recipient", pref.UserID,
			"target", pref.Language,
			"source", source,
		)
	}

	if failed > 0 {
		d.logger.Warn("fan-out completed with partial publish failures",
			"workspace", workspace,
			"channel", ev.ChannelID,
			"published", published,
			"failed", failed,
		)
	} else {
		d.logger.Info("fan-out complete",
			"workspace", workspace,
			"channel", ev.ChannelID,
			"members", len(members),
			"published", published,
			"source", source,
		)
	}
	return nil
}

// sourceLanguage applies the short-text heuristic before paying for a
// detection call.
func (d *Dispatcher) sourceLanguage(ctx context.Context, text string) (string, error) {
	if utf8.RuneCountInString(text) < d.cfg.ShortTextThreshold {
		return d.cfg.DefaultSource, nil
	}
	return d.cfg.Detector.DetectLanguage(ctx, text)
}
