package webhook

import (
	"errors"
	"testing"

	"hermes/internal/domain"
)

func TestClassify_Challenge(t *testing.T) {
	cls, err := Classify([]byte(`{"challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`))
	if err != nil {
		t.Fatal(err)
	}
	if cls.Challenge != "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P" {
		t.Errorf("challenge not echoed: %q", cls.Challenge)
	}
	if cls.Event != nil {
		t.Error("challenge classification must not carry an event")
	}
}

func TestClassify_ChannelMessage(t *testing.T) {
	body := `{
		"team_id": "T0001",
		"event": {
			"type": "message",
			"user": "U2147483697",
			"channel": "C2147483705",
			"text": "bonjour tout le monde",
			"channel_type": "channel",
			"event_ts": "1531420618.000100"
		}
	}`
	cls, err := Classify([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	ev := cls.Event
	if ev == nil {
		t.Fatal("expected an event")
	}
	if cls.Workspace != "T0001" {
		t.Errorf("workspace: %q", cls.Workspace)
	}
	if ev.ChannelType != domain.PublicChannel {
		t.Errorf("channel_type: %q", ev.ChannelType)
	}
	if ev.IsDirect() {
		t.Error("public channel message classified as direct")
	}
	if ev.UserID != "U2147483697" || ev.ChannelID != "C2147483705" {
		t.Errorf("identity fields wrong: %+v", ev)
	}
}

func TestClassify_ChannelTypeMapping(t *testing.T) {
	cases := map[string]domain.ChannelType{
		"group":    domain.PrivateChannel,
		"im":       domain.DirectMessage,
		"mpim":     domain.MultiDirectMessage,
		"app_home": domain.AppMessage,
		"channel":  domain.PublicChannel,
	}
	for raw, want := range cases {
		body := `{"team_id":"T1","event":{"type":"message","user":"U1","channel":"C1","text":"hi","channel_type":"` + raw + `"}}`
		cls, err := Classify([]byte(body))
		if err != nil {
			t.Errorf("%s: %v", raw, err)
			continue
		}
		if cls.Event.ChannelType != want {
			t.Errorf("%s: got %q, want %q", raw, cls.Event.ChannelType, want)
		}
	}
}

func TestClassify_DirectMessage(t *testing.T) {
	body := `{"team_id":"T1","event":{"type":"message","user":"U1","channel":"D1","text":"set language french","channel_type":"im"}}`
	cls, err := Classify([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if !cls.Event.IsDirect() {
		t.Error("im message should route to command handling")
	}
}

func TestClassify_UnknownChannelType(t *testing.T) {
	body := `{"team_id":"T1","event":{"type":"message","user":"U1","channel":"C1","text":"hi","channel_type":"huddle"}}`
	_, err := Classify([]byte(body))
	if !errors.Is(err, domain.ErrUnknownChannelType) {
		t.Errorf("expected ErrUnknownChannelType, got %v", err)
	}
}

func TestClassify_Malformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"team_id":"T1"}`,
		`{"event":{"type":"message","user":"U1","channel":"C1","channel_type":"channel"}}`,
	}
	for i, body := range cases {
		if _, err := Classify([]byte(body)); !errors.Is(err, domain.ErrMalformedEvent) {
			t.Errorf("case %d: expected ErrMalformedEvent, got %v", i, err)
		}
	}
}

func TestParseFlatForm_LaterKeyWins(t *testing.T) {
	flat, err := parseFlatForm([]byte("text=first&user_id=U1&text=second"))
	if err != nil {
		t.Fatal(err)
	}
	if flat["text"] != "second" {
		t.Errorf("later key should overwrite: %q", flat["text"])
	}
	if flat["user_id"] != "U1" {
		t.Errorf("user_id: %q", flat["user_id"])
	}
}

func TestParseFlatForm_Escapes(t *testing.T) {
	flat, err := parseFlatForm([]byte("text=set+language%20french&team_id=T0001"))
	if err != nil {
		t.Fatal(err)
	}
	if flat["text"] != "set language french" {
		t.Errorf("unescape failed: %q", flat["text"])
	}
}
