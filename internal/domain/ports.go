package domain

import "context"

// PreferenceStore persists per-user target languages, scoped by workspace.
type PreferenceStore interface {
	// Get returns the explicit preference for one user, or "" when absent.
	Get(ctx context.Context, workspace, userID string) (string, error)
	// BatchGet resolves preferences for all given users, substituting the
	// workspace default for any user without an explicit record. The
	// default row is fetched in the same query, never materialized per user.
	BatchGet(ctx context.Context, workspace string, userIDs []string) ([]Preference, error)
	// Set creates or overwrites a user's preference.
	Set(ctx context.Context, workspace, userID, language string) error
	// AddWorkspace writes the workspace default record.
	AddWorkspace(ctx context.Context, workspace, defaultLanguage string) error
}

// JobPublisher enqueues an opaque payload on a topic. Returns the assigned
// message id.
type JobPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// RecordHandler drains one batch of queue records. Delivery is at-least-once:
// an error requeues every record in the batch that did not dead-letter.
type RecordHandler func(ctx context.Context, records []QueueRecord) error

// Detector identifies the dominant language of a text.
type Detector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// Translator converts text between two language codes.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// ChatGateway is the outbound surface of the chat platform.
type ChatGateway interface {
	// ChannelMembers returns every user id in the channel, following
	// pagination cursors until exhausted.
	ChannelMembers(ctx context.Context, channelID string) ([]string, error)
	// PostEphemeral privately delivers text to one user within a channel.
	PostEphemeral(ctx context.Context, channelID, userID, text string) error
}
