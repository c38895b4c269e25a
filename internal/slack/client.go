// Package slack wraps the Slack Web API behind domain.ChatGateway.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	"hermes/internal/domain"

	"github.com/slack-go/slack"
)

const membersPageSize = 200

// Client implements domain.ChatGateway over the Slack Web API.
type Client struct {
	api    *slack.Client
	logger *slog.Logger
}

func New(botToken string, logger *slog.Logger) *Client {
	return &Client{
		api:    slack.New(botToken),
		logger: logger,
	}
}

// BotUserID resolves the bot's own user id via auth.test. The webhook server
// uses it to skip the bot's own message echoes.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("slack auth: %w", err)
	}
	c.logger.Info("slack bot connected", "user", resp.User, "user_id", resp.UserID)
	return resp.UserID, nil
}

// ChannelMembers returns every user id in the channel, following pagination
// cursors until the listing is exhausted.
func (c *Client) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	params := &slack.GetUsersInConversationParameters{
		ChannelID: channelID,
		Limit:     membersPageSize,
	}

	var all []string
	for {
		members, cursor, err := c.api.GetUsersInConversationContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("conversations.members %s: %w", channelID, err)
		}
		all = append(all, members...)
		if cursor == "" {
			return all, nil
		}
		params.Cursor = cursor
	}
}

// PostEphemeral privately delivers text to one user within a channel. A
// non-success acknowledgment surfaces as ErrDeliveryFailed so the queue's
// retry policy applies.
func (c *Client) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	_, err := c.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("%w: channel %s user %s: %v", domain.ErrDeliveryFailed, channelID, userID, err)
	}
	return nil
}
