package domain

import "time"

// TranslationJob is the unit of work published per qualifying recipient.
// The JSON field names are the queue wire format.
type TranslationJob struct {
	RecipientID    string `json:"user_id"`
	TargetLanguage string `json:"target_language"`
	Workspace      string `json:"workspace"`
	Text           string `json:"text"`
	ChannelID      string `json:"channel"`
	SourceLanguage string `json:"source_language"`
}

// Valid reports whether all fields required to translate and deliver are set.
// A job failing this check is structurally broken and must not be retried.
func (j TranslationJob) Valid() bool {
	return j.RecipientID != "" &&
		j.TargetLanguage != "" &&
		j.Workspace != "" &&
		j.Text != "" &&
		j.ChannelID != "" &&
		j.SourceLanguage != ""
}

// QueueRecord wraps one published payload with delivery metadata.
// Attempt starts at 1 on first delivery.
type QueueRecord struct {
	MessageID  string
	Topic      string
	Attempt    int
	Payload    []byte
	EnqueuedAt time.Time
}
