package webhook

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"hermes/internal/domain"
)

// channelTypes is the closed mapping from the platform's channel_type field.
// Anything outside it is a fatal classification failure.
var channelTypes = map[string]domain.ChannelType{
	"group":    domain.PrivateChannel,
	"im":       domain.DirectMessage,
	"mpim":     domain.MultiDirectMessage,
	"app_home": domain.AppMessage,
	"channel":  domain.PublicChannel,
}

// Classification is the outcome of parsing one verified webhook body.
// Exactly one of Challenge or Event is set.
type Classification struct {
	// Challenge holds the handshake token to echo back verbatim. Terminal.
	Challenge string
	// Workspace is the tenant the event belongs to.
	Workspace string
	// Event is the typed message event.
	Event *domain.MessageEvent
}

type eventEnvelope struct {
	Challenge string    `json:"challenge"`
	TeamID    string    `json:"team_id"`
	Event     *rawEvent `json:"event"`
}

type rawEvent struct {
	Type        string `json:"type"`
	SubType     string `json:"subtype"`
	User        string `json:"user"`
	Channel     string `json:"channel"`
	Text        string `json:"text"`
	ChannelType string `json:"channel_type"`
	EventTS     string `json:"event_ts"`
}

// Classify parses a verified JSON body into a challenge echo or a typed
// message event. All required fields are validated up front; nothing is
// populated lazily.
func Classify(body []byte) (*Classification, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	if env.Challenge != "" {
		return &Classification{Challenge: env.Challenge}, nil
	}

	if env.Event == nil {
		return nil, fmt.Errorf("%w: missing event payload", domain.ErrMalformedEvent)
	}
	if env.TeamID == "" {
		return nil, fmt.Errorf("%w: missing team_id", domain.ErrMalformedEvent)
	}

	ct, ok := channelTypes[env.Event.ChannelType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownChannelType, env.Event.ChannelType)
	}

	return &Classification{
		Workspace: env.TeamID,
		Event: &domain.MessageEvent{
			Type:        env.Event.Type,
			SubType:     env.Event.SubType,
			UserID:      env.Event.User,
			ChannelID:   env.Event.Channel,
			Text:        env.Event.Text,
			ChannelType: ct,
			Timestamp:   env.Event.EventTS,
		},
	}, nil
}

// parseFlatForm decodes a URL-encoded body into a flat key/value map.
// Later occurrences of a key overwrite earlier ones.
func parseFlatForm(body []byte) (map[string]string, error) {
	flat := make(map[string]string)
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
		}
		flat[k] = v
	}
	return flat, nil
}
