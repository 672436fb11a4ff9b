// Package matrix is a send-only Matrix client for the operations room.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// Client wraps the mautrix client. It never syncs; it only posts notices.
type Client struct {
	client *mautrix.Client
}

// New creates a new Matrix client.
func New(cfg Config) (*Client, error) {
	if cfg.Homeserver == "" {
		return nil, errors.New("matrix: homeserver is required")
	}
	if cfg.AccessToken == "" {
		return nil, errors.New("matrix: access token is required")
	}
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}
	return &Client{client: client}, nil
}

// Join joins roomID. Joining a room the account is already in is a no-op
// on the homeserver side.
func (c *Client) Join(ctx context.Context, roomID string) error {
	if _, err := c.client.JoinRoomByID(ctx, id.RoomID(roomID)); err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	slog.Info("joined ops room", "room", roomID)
	return nil
}

// SendNotice sends an m.notice message to a room.
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("send notice to %s: %w", roomID, err)
	}
	return nil
}

// UserID returns the account the client acts as.
func (c *Client) UserID() string {
	return c.client.UserID.String()
}
