// Package commands handles prefix chat commands and watch-channel traffic.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brettins/discord-pr-manager/internal/dispatch"
	"github.com/brettins/discord-pr-manager/internal/event"
	"github.com/brettins/discord-pr-manager/internal/format"
	"github.com/brettins/discord-pr-manager/internal/guilds"
	"github.com/brettins/discord-pr-manager/internal/registry"
	"github.com/brettins/discord-pr-manager/internal/relay"
)

// Command prefixes. adminPrefix must be checked first: it shares a prefix
// with prPrefix.
const (
	adminPrefix = "!prbot"
	prPrefix    = "!pr"
)

// githubAuthorName is the display name of GitHub's own webhook integration
// messages, whose embeds are parsed in the watch channel.
const githubAuthorName = "GitHub"

// ChatClient is the platform capability the command handler consumes.
type ChatClient interface {
	PostMessage(ctx context.Context, channelID, text string) (messageID string, err error)
	SendDM(ctx context.Context, userID, text string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	IsAdministrator(ctx context.Context, userID, channelID string) bool
	ResolveChannel(arg string) string
	BotUserID() string
}

// Embed is the subset of an incoming message embed the parser consumes.
type Embed struct {
	Title       string
	Description string
	URL         string
	Author      string
}

// Message is a platform-neutral view of an incoming chat message.
type Message struct {
	GuildID    int64
	ChannelID  string
	MessageID  string
	AuthorID   string
	AuthorName string
	Content    string
	Embeds     []Embed
}

// Config holds the handler's collaborators.
type Config struct {
	Chat      ChatClient
	Guilds    *guilds.Store
	Queue     *dispatch.Queue
	Engine    *relay.Engine
	Registry  *registry.Registry
	PublicURL string
	Logger    *slog.Logger
}

// Handler routes incoming chat messages: admin commands, manual PR
// submissions, and PR mentions forwarded through the watch channel.
type Handler struct {
	chat      ChatClient
	guilds    *guilds.Store
	queue     *dispatch.Queue
	engine    *relay.Engine
	registry  *registry.Registry
	publicURL string
	logger    *slog.Logger
}

// NewHandler creates a command handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		chat:      cfg.Chat,
		guilds:    cfg.Guilds,
		queue:     cfg.Queue,
		engine:    cfg.Engine,
		registry:  cfg.Registry,
		publicURL: cfg.PublicURL,
		logger:    logger,
	}
}

// HandleMessage processes one incoming message. Platform call failures are
// logged and reported to the user where it makes sense; they never
// propagate.
func (h *Handler) HandleMessage(ctx context.Context, m Message) {
	if m.AuthorID == h.chat.BotUserID() {
		return
	}

	if strings.HasPrefix(m.Content, adminPrefix) {
		h.handleAdmin(ctx, m)
		return
	}

	watch, post := h.guilds.Destination(m.GuildID, m.ChannelID)

	if strings.HasPrefix(m.Content, prPrefix) {
		h.handlePRCommand(ctx, m, post)
		return
	}

	if m.ChannelID != watch {
		return
	}

	// GitHub-authored embeds take priority over pattern matching the raw
	// content.
	if m.AuthorName == githubAuthorName && len(m.Embeds) > 0 {
		h.handleEmbeds(m, post)
		return
	}

	if ev, ok := event.ParseMessage(m.Content); ok {
		h.enqueuePrimary(ev, post, Message{})
		return
	}

	h.forward(ctx, m, post)
}

// forward mirrors non-PR watch-channel chatter into the post channel.
func (h *Handler) forward(ctx context.Context, m Message, postChannel string) {
	if m.Content == "" || postChannel == "" || postChannel == m.ChannelID {
		return
	}
	text := m.Content
	if m.AuthorName != "" {
		text = m.AuthorName + ": " + m.Content
	}
	if _, err := h.chat.PostMessage(ctx, postChannel, text); err != nil {
		h.logger.Warn("failed to forward watch-channel message",
			"channel_id", postChannel,
			"error", err)
	}
}

// handleEmbeds runs the embed form of the parser over each embed.
func (h *Handler) handleEmbeds(m Message, postChannel string) {
	for _, embed := range m.Embeds {
		ev, ok := event.ParseEmbed(embed.Title, embed.Description, embed.URL, embed.Author)
		if !ok {
			continue
		}
		h.enqueuePrimary(ev, postChannel, Message{})
	}
}

// handlePRCommand handles the manual !pr submission. Input that does not
// match the PR pattern is echoed back, not dropped.
func (h *Handler) handlePRCommand(ctx context.Context, m Message, postChannel string) {
	rest := strings.TrimPrefix(m.Content, prPrefix)

	ev, ok := event.ParseCommand(rest)
	if !ok {
		if _, err := h.chat.PostMessage(ctx, m.ChannelID, "Creating PR thread: "+strings.TrimSpace(rest)); err != nil {
			h.logger.Warn("failed to echo PR command", "error", err)
		}
		return
	}

	h.enqueuePrimary(ev, postChannel, m)
}

// enqueuePrimary schedules a primary event. When ack is a real message and
// the event updated an already tracked PR, the triggering message gets an
// acknowledgment reaction.
func (h *Handler) enqueuePrimary(ev event.PREvent, channelID string, ack Message) {
	ok := h.queue.Enqueue(func(ctx context.Context) {
		outcome, err := h.engine.HandlePrimary(ctx, ev, channelID)
		if err != nil {
			h.logger.Error("failed to process chat PR event",
				"repository", ev.Repository,
				"pr_number", ev.Number,
				"error", err)
			if ack.ChannelID != "" {
				if _, perr := h.chat.PostMessage(ctx, ack.ChannelID, "Error updating PR status: "+err.Error()); perr != nil {
					h.logger.Warn("failed to report PR error", "error", perr)
				}
			}
			return
		}
		if outcome == registry.Updated && ack.MessageID != "" {
			if err := h.chat.AddReaction(ctx, ack.ChannelID, ack.MessageID, format.EmojiAck); err != nil {
				h.logger.Debug("failed to add ack reaction", "error", err)
			}
		}
	})
	if !ok {
		h.logger.Warn("dropping chat PR event, queue unavailable",
			"repository", ev.Repository,
			"pr_number", ev.Number)
	}
}

func (h *Handler) handleAdmin(ctx context.Context, m Message) {
	if !h.chat.IsAdministrator(ctx, m.AuthorID, m.ChannelID) {
		h.reply(ctx, m, "You need administrator permissions to configure the bot.")
		return
	}

	parts := strings.Fields(m.Content)
	if len(parts) < 2 {
		h.reply(ctx, m, helpText())
		return
	}

	switch strings.ToLower(parts[1]) {
	case "watch":
		h.setChannel(ctx, m, parts, h.guilds.SetWatchChannel, "Watch")
	case "post":
		h.setChannel(ctx, m, parts, h.guilds.SetPostChannel, "Post")
	case "status":
		h.showStatus(ctx, m)
	case "webhook":
		h.setupWebhook(ctx, m)
	default:
		h.reply(ctx, m, helpText())
	}
}

func (h *Handler) setChannel(ctx context.Context, m Message, parts []string, set func(int64, string) error, label string) {
	if len(parts) < 3 {
		h.reply(ctx, m, "Please specify a valid channel.")
		return
	}
	channelID := h.chat.ResolveChannel(parts[2])
	if channelID == "" {
		h.reply(ctx, m, "Please specify a valid channel.")
		return
	}
	if err := set(m.GuildID, channelID); err != nil {
		h.logger.Error("failed to persist channel setting",
			"guild_id", m.GuildID,
			"error", err)
		h.reply(ctx, m, "Failed to save setting, check the logs.")
		return
	}
	h.reply(ctx, m, fmt.Sprintf("%s channel set to <#%s>", label, channelID))
}

func (h *Handler) showStatus(ctx context.Context, m Message) {
	cfg := h.guilds.Config(m.GuildID)

	watch := "Not set"
	if cfg.WatchChannel != "" {
		watch = "<#" + cfg.WatchChannel + ">"
	}
	post := "Not set"
	if cfg.PostChannel != "" {
		post = "<#" + cfg.PostChannel + ">"
	}
	token := "Not configured"
	if cfg.WebhookToken != "" {
		token = "Configured"
	}

	h.reply(ctx, m, fmt.Sprintf(
		"Current configuration:\nWatch channel: %s\nPost channel: %s\nWebhook token: %s\nTracked PRs: %d",
		watch, post, token, h.registry.Len()))
}

// setupWebhook mints the guild token if needed and delivers setup
// instructions privately, falling back to the channel when the DM is
// refused.
func (h *Handler) setupWebhook(ctx context.Context, m Message) {
	token, err := h.guilds.EnsureToken(m.GuildID)
	if err != nil {
		h.logger.Error("failed to mint webhook token",
			"guild_id", m.GuildID,
			"error", err)
		h.reply(ctx, m, "Failed to set up the webhook, check the logs.")
		return
	}

	_, post := h.guilds.Destination(m.GuildID, m.ChannelID)
	url := fmt.Sprintf("%s/webhook/%d/%s/%s", strings.TrimRight(h.publicURL, "/"), m.GuildID, post, token)

	instructions := fmt.Sprintf(
		"GitHub webhook setup for this server:\n"+
			"1. Open your repository settings and add a webhook.\n"+
			"2. Payload URL: %s\n"+
			"3. Content type: application/json\n"+
			"4. Events: pull requests, reviews, and comments.\n"+
			"Keep this URL private, the token in it authorizes deliveries.", url)

	if err := h.chat.SendDM(ctx, m.AuthorID, instructions); err != nil {
		h.logger.Warn("DM refused, falling back to channel delivery",
			"user_id", m.AuthorID,
			"error", err)
		h.reply(ctx, m, instructions)
		return
	}
	h.reply(ctx, m, "Webhook setup instructions sent via DM.")
}

func (h *Handler) reply(ctx context.Context, m Message, text string) {
	if _, err := h.chat.PostMessage(ctx, m.ChannelID, text); err != nil {
		h.logger.Warn("failed to send reply",
			"channel_id", m.ChannelID,
			"error", err)
	}
}

func helpText() string {
	return "Available commands:\n" +
		"!prbot watch <#channel> - Set channel to watch for PR notifications\n" +
		"!prbot post <#channel> - Set channel to post PR threads\n" +
		"!prbot status - Show current configuration\n" +
		"!prbot webhook - Set up the GitHub webhook for this server"
}
