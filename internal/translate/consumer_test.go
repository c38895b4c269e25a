package translate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"hermes/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakeTranslator struct {
	calls []translateRequest
	err   error
}

func (f *fakeTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	f.calls = append(f.calls, translateRequest{Text: text, SourceLanguageCode: source, TargetLanguageCode: target})
	if f.err != nil {
		return "", f.err
	}
	return "[" + target + "] " + text, nil
}

type delivery struct {
	channel, user, text string
}

type fakeGateway struct {
	deliveries []delivery
	err        error
}

func (f *fakeGateway) ChannelMembers(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeGateway) PostEphemeral(_ context.Context, channelID, userID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.deliveries = append(f.deliveries, delivery{channelID, userID, text})
	return nil
}

type fakeDeadLetterer struct {
	dead []error
}

func (f *fakeDeadLetterer) DeadLetter(_ domain.QueueRecord, reason error) {
	f.dead = append(f.dead, reason)
}

func testConsumer(tr *fakeTranslator, gw *fakeGateway, dl *fakeDeadLetterer) *Consumer {
	return NewConsumer(ConsumerConfig{
		Translator: tr,
		Gateway:    gw,
		DeadLetter: dl,
		Logger:     testLogger(),
	})
}

func jobRecord(t *testing.T, job domain.TranslationJob) domain.QueueRecord {
	t.Helper()
	payload, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	return domain.QueueRecord{MessageID: "m1", Topic: "translate", Attempt: 1, Payload: payload}
}

func validJob() domain.TranslationJob {
	return domain.TranslationJob{
		RecipientID:    "U2",
		TargetLanguage: "fr",
		Workspace:      "T1",
		Text:           "good morning",
		ChannelID:      "C1",
		SourceLanguage: "en",
	}
}

func TestHandle_TranslatesAndDelivers(t *testing.T) {
	tr := &fakeTranslator{}
	gw := &fakeGateway{}
	dl := &fakeDeadLetterer{}

	err := testConsumer(tr, gw, dl).Handle(context.Background(),
		[]domain.QueueRecord{jobRecord(t, validJob())})
	if err != nil {
		t.Fatal(err)
	}

	if len(tr.calls) != 1 {
		t.Fatalf("expected 1 translation call, got %d", len(tr.calls))
	}
	call := tr.calls[0]
	if call.SourceLanguageCode != "en" || call.TargetLanguageCode != "fr" {
		t.Errorf("wrong language pair: %+v", call)
	}
	if len(gw.deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(gw.deliveries))
	}
	d := gw.deliveries[0]
	if d.channel != "C1" || d.user != "U2" || d.text != "[fr] good morning" {
		t.Errorf("wrong delivery: %+v", d)
	}
	if len(dl.dead) != 0 {
		t.Errorf("no dead letters expected, got %d", len(dl.dead))
	}
}

func TestHandle_DuplicateDeliveryIdentical(t *testing.T) {
	tr := &fakeTranslator{}
	gw := &fakeGateway{}
	c := testConsumer(tr, gw, &fakeDeadLetterer{})

	rec := jobRecord(t, validJob())
	ctx := context.Background()
	if err := c.Handle(ctx, []domain.QueueRecord{rec}); err != nil {
		t.Fatal(err)
	}
	if err := c.Handle(ctx, []domain.QueueRecord{rec}); err != nil {
		t.Fatal(err)
	}

	if len(gw.deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(gw.deliveries))
	}
	if gw.deliveries[0] != gw.deliveries[1] {
		t.Errorf("duplicate deliveries differ: %+v vs %+v", gw.deliveries[0], gw.deliveries[1])
	}
}

func TestHandle_MalformedJSONDeadLettered(t *testing.T) {
	tr := &fakeTranslator{}
	dl := &fakeDeadLetterer{}
	c := testConsumer(tr, &fakeGateway{}, dl)

	rec := domain.QueueRecord{MessageID: "m1", Payload: []byte("not json")}
	if err := c.Handle(context.Background(), []domain.QueueRecord{rec}); err != nil {
		t.Fatalf("malformed payload must not be retried: %v", err)
	}

	if len(dl.dead) != 1 || !errors.Is(dl.dead[0], domain.ErrMalformedJob) {
		t.Errorf("expected one ErrMalformedJob dead letter, got %v", dl.dead)
	}
	if len(tr.calls) != 0 {
		t.Error("malformed payload must never reach the translator")
	}
}

func TestHandle_MissingFieldsDeadLettered(t *testing.T) {
	dl := &fakeDeadLetterer{}
	c := testConsumer(&fakeTranslator{}, &fakeGateway{}, dl)

	job := validJob()
	job.RecipientID = ""
	if err := c.Handle(context.Background(), []domain.QueueRecord{jobRecord(t, job)}); err != nil {
		t.Fatalf("structurally broken job must not be retried: %v", err)
	}

	if len(dl.dead) != 1 || !errors.Is(dl.dead[0], domain.ErrMalformedJob) {
		t.Errorf("expected one ErrMalformedJob dead letter, got %v", dl.dead)
	}
}

func TestHandle_BackendFailureRetryable(t *testing.T) {
	tr := &fakeTranslator{err: errors.New("backend 503")}
	dl := &fakeDeadLetterer{}
	c := testConsumer(tr, &fakeGateway{}, dl)

	err := c.Handle(context.Background(), []domain.QueueRecord{jobRecord(t, validJob())})
	if err == nil {
		t.Fatal("backend failure must propagate so the queue retries")
	}
	if len(dl.dead) != 0 {
		t.Error("retryable failure must not dead-letter")
	}
}

func TestHandle_DeliveryFailureRetryable(t *testing.T) {
	gw := &fakeGateway{err: domain.ErrDeliveryFailed}
	c := testConsumer(&fakeTranslator{}, gw, &fakeDeadLetterer{})

	err := c.Handle(context.Background(), []domain.QueueRecord{jobRecord(t, validJob())})
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed to propagate, got %v", err)
	}
}

func TestHandle_MixedBatch(t *testing.T) {
	tr := &fakeTranslator{}
	gw := &fakeGateway{}
	dl := &fakeDeadLetterer{}
	c := testConsumer(tr, gw, dl)

	records := []domain.QueueRecord{
		jobRecord(t, validJob()),
		{MessageID: "m2", Payload: []byte("{broken")},
	}
	if err := c.Handle(context.Background(), records); err != nil {
		t.Fatalf("valid record plus malformed record should succeed: %v", err)
	}
	if len(gw.deliveries) != 1 {
		t.Errorf("valid record must still deliver, got %d", len(gw.deliveries))
	}
	if len(dl.dead) != 1 {
		t.Errorf("malformed record must dead-letter, got %d", len(dl.dead))
	}
}
