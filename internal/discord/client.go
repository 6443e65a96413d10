// Package discord wraps discordgo with the narrow operations the relay
// consumes.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/codeGROOVE-dev/retry"

	"github.com/brettins/discord-pr-manager/internal/commands"
	"github.com/brettins/discord-pr-manager/internal/format"
)

// threadAutoArchiveMinutes keeps follow-up threads visible for a day.
const threadAutoArchiveMinutes = 1440

// Client wraps a discordgo session.
type Client struct {
	session *discordgo.Session
}

// New creates a new Discord client.
func New(token string) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &Client{session: session}, nil
}

// retryableCtx wraps a function with standard retry configuration.
func retryableCtx(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
}

// openTimeout is the maximum time to wait for the gateway connection.
const openTimeout = 30 * time.Second

// Open opens the WebSocket connection to Discord with a timeout.
func (c *Client) Open() error {
	done := make(chan error, 1)
	go func() {
		done <- c.session.Open()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(openTimeout):
		c.session.Close() //nolint:errcheck,gosec // best-effort close on timeout
		return errors.New("timeout waiting for Discord connection")
	}
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	return c.session.Close()
}

// Session returns the underlying discordgo session.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// embedFrom converts a rendered notification into a Discord embed.
func embedFrom(n format.Notification) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Description,
		URL:         n.URL,
		Color:       n.Color,
	}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if n.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: n.ThumbnailURL}
	}
	if n.FooterText != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: n.FooterText}
	}
	return embed
}

// SendNotification posts a rendered PR notification as an embed.
func (c *Client) SendNotification(ctx context.Context, channelID string, n format.Notification) (string, error) {
	var msg *discordgo.Message
	err := retryableCtx(ctx, func() error {
		var err error
		msg, err = c.session.ChannelMessageSendEmbed(channelID, embedFrom(n))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to send notification: %w", err)
	}

	slog.Info("posted notification embed",
		"channel_id", channelID,
		"message_id", msg.ID,
		"title", n.Title)
	return msg.ID, nil
}

// EditNotification edits an existing notification embed in place.
func (c *Client) EditNotification(ctx context.Context, channelID, messageID string, n format.Notification) error {
	err := retryableCtx(ctx, func() error {
		_, err := c.session.ChannelMessageEditEmbed(channelID, messageID, embedFrom(n))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to edit notification: %w", err)
	}

	slog.Info("updated notification embed",
		"channel_id", channelID,
		"message_id", messageID,
		"title", n.Title)
	return nil
}

// CreateThread starts a follow-up thread anchored to a message.
func (c *Client) CreateThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	var thread *discordgo.Channel
	err := retryableCtx(ctx, func() error {
		var err error
		thread, err = c.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
			Name:                format.Truncate(name, 100), // Discord limits thread names
			AutoArchiveDuration: threadAutoArchiveMinutes,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}

	slog.Info("created follow-up thread",
		"channel_id", channelID,
		"message_id", messageID,
		"thread_id", thread.ID,
		"name", name)
	return thread.ID, nil
}

// PostToThread sends a plain text line to a thread.
func (c *Client) PostToThread(ctx context.Context, threadID, text string) error {
	err := retryableCtx(ctx, func() error {
		_, err := c.session.ChannelMessageSend(threadID, text)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to post to thread: %w", err)
	}

	slog.Debug("posted thread line",
		"thread_id", threadID,
		"content", text)
	return nil
}

// PostMessage sends a plain text message with link embeds suppressed.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (string, error) {
	var msg *discordgo.Message
	err := retryableCtx(ctx, func() error {
		var err error
		msg, err = c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content: text,
			Flags:   discordgo.MessageFlagsSuppressEmbeds,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	slog.Info("posted channel message",
		"channel_id", channelID,
		"message_id", msg.ID)
	return msg.ID, nil
}

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	err := retryableCtx(ctx, func() error {
		return c.session.MessageReactionAdd(channelID, messageID, emoji)
	})
	if err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}

// SendDM sends a direct message to a user.
func (c *Client) SendDM(ctx context.Context, userID, text string) error {
	var channel *discordgo.Channel
	err := retryableCtx(ctx, func() error {
		var err error
		channel, err = c.session.UserChannelCreate(userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create DM channel: %w", err)
	}

	err = retryableCtx(ctx, func() error {
		_, err := c.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
			Content: text,
			Flags:   discordgo.MessageFlagsSuppressEmbeds,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}

	slog.Info("sent DM",
		"user_id", userID,
		"channel_id", channel.ID)
	return nil
}

// IsAdministrator reports whether a user holds the administrator
// permission in the given channel's guild.
func (c *Client) IsAdministrator(ctx context.Context, userID, channelID string) bool {
	perms, err := c.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		slog.Debug("failed to check channel permissions",
			"channel_id", channelID,
			"user_id", userID,
			"error", err)
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// ResolveChannel normalizes a channel argument: mentions like <#123> and
// raw numeric IDs both resolve to the bare ID. Anything else returns
// empty.
func (c *Client) ResolveChannel(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "<#") && strings.HasSuffix(arg, ">") {
		arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
	}
	if arg == "" {
		return ""
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return arg
}

// BotUserID returns the bot's own user ID once the session is ready.
func (c *Client) BotUserID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

// OnMessage registers fn for guild message create events. DMs and
// messages from guilds with unparseable IDs are ignored.
func (c *Client) OnMessage(fn func(ctx context.Context, m commands.Message)) {
	c.session.AddHandler(func(_ *discordgo.Session, mc *discordgo.MessageCreate) {
		if mc.Author == nil || mc.GuildID == "" {
			return
		}
		guildID, err := strconv.ParseInt(mc.GuildID, 10, 64)
		if err != nil {
			return
		}

		m := commands.Message{
			GuildID:    guildID,
			ChannelID:  mc.ChannelID,
			MessageID:  mc.ID,
			AuthorID:   mc.Author.ID,
			AuthorName: mc.Author.Username,
			Content:    mc.Content,
		}
		for _, e := range mc.Embeds {
			embed := commands.Embed{
				Title:       e.Title,
				Description: e.Description,
				URL:         e.URL,
			}
			if e.Author != nil {
				embed.Author = e.Author.Name
			}
			m.Embeds = append(m.Embeds, embed)
		}

		fn(context.Background(), m)
	})
}
