package domain

// ChannelType classifies where a message event originated.
type ChannelType string

const (
	PublicChannel      ChannelType = "public_channel"
	PrivateChannel     ChannelType = "private_channel"
	DirectMessage      ChannelType = "direct_message"
	MultiDirectMessage ChannelType = "multi_direct_message"
	AppMessage         ChannelType = "app_message"
)

// MessageEvent is one verified message event from the chat platform.
// Immutable once constructed by the classifier.
type MessageEvent struct {
	Type        string
	SubType     string
	UserID      string
	ChannelID   string
	Text        string
	ChannelType ChannelType
	Timestamp   string
}

// IsDirect reports whether the event should be routed to command handling
// instead of the fan-out pipeline.
func (e MessageEvent) IsDirect() bool {
	return e.ChannelType == DirectMessage
}
