// Package relay implements the notification reconciliation engine: it
// decides create versus update for every incoming PR event and drives the
// registry accordingly.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brettins/discord-pr-manager/internal/event"
	"github.com/brettins/discord-pr-manager/internal/format"
	"github.com/brettins/discord-pr-manager/internal/registry"
)

// Reactor is the optional add-reaction capability. Engines constructed
// without one get a fixed no-op.
type Reactor interface {
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}

type noopReactor struct{}

func (noopReactor) AddReaction(context.Context, string, string, string) error { return nil }

// Config holds the engine's collaborators.
type Config struct {
	Registry *registry.Registry
	Reactor  Reactor
	Logger   *slog.Logger
}

// Engine composes the parser output, the classifier and the registry into
// create-or-update notification semantics. It holds no per-key state of
// its own; all processing runs on the single dispatch worker, so events
// for one key are handled strictly in arrival order.
type Engine struct {
	registry *registry.Registry
	reactor  Reactor
	logger   *slog.Logger
}

// New creates an engine from its collaborators.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reactor := cfg.Reactor
	if reactor == nil {
		reactor = noopReactor{}
	}
	return &Engine{
		registry: cfg.Registry,
		reactor:  reactor,
		logger:   logger,
	}
}

// HandlePrimary processes a primary PR lifecycle event destined for a
// channel: render, upsert, and on first creation open the follow-up thread.
func (e *Engine) HandlePrimary(ctx context.Context, ev event.PREvent, channelID string) (registry.Outcome, error) {
	if !ev.Valid() {
		return 0, fmt.Errorf("event missing repository or number: %+v", ev)
	}

	key := registry.Key{Repository: ev.Repository, Number: ev.Number}
	tier := format.TierFromAction(ev.Action)
	body := format.Render(ev)

	outcome, ref, err := e.registry.Upsert(ctx, key, channelID, body)
	if err != nil {
		if errors.Is(err, registry.ErrEditFailed) {
			// The stored message is stale or deleted. Creating a
			// replacement here would risk a notification storm, so the
			// failure is only reported upward.
			e.logger.Error("notification edit failed, state inconsistent until next create",
				"key", key.String(),
				"error", err)
		}
		return outcome, err
	}

	switch outcome {
	case registry.Created:
		e.openThread(ctx, key, ev)
	case registry.Updated:
		if err := e.registry.PostToThread(ctx, key, format.StatusLine(ev)); err != nil {
			if errors.Is(err, registry.ErrNoThread) {
				e.logger.Debug("no thread for status update", "key", key.String())
			} else {
				e.logger.Warn("failed to post status update to thread",
					"key", key.String(),
					"error", err)
			}
		}
	}

	if tier == format.TierMerged || tier == format.TierAbandoned {
		if err := e.reactor.AddReaction(ctx, ref.ChannelID, ref.MessageID, format.EmojiDone); err != nil {
			e.logger.Warn("failed to add terminal-state reaction",
				"key", key.String(),
				"error", err)
		}
	}

	e.logger.Info("processed PR event",
		"key", key.String(),
		"action", ev.Action,
		"tier", string(tier),
		"outcome", outcome.String())
	return outcome, nil
}

// openThread attaches the follow-up thread after a first successful send
// and posts the opening marker. Failures degrade the key to thread-less;
// they never propagate.
func (e *Engine) openThread(ctx context.Context, key registry.Key, ev event.PREvent) {
	if _, err := e.registry.AttachThread(ctx, key, format.ThreadName(ev)); err != nil {
		e.logger.Warn("could not open follow-up thread",
			"key", key.String(),
			"error", err)
		return
	}
	if err := e.registry.PostToThread(ctx, key, format.ThreadMarker(ev)); err != nil {
		e.logger.Warn("failed to post thread marker",
			"key", key.String(),
			"error", err)
	}
}

// HandleSecondary fans a review or comment event into the existing
// follow-up thread. It never creates a primary notification: events for
// PRs without a thread are dropped silently.
func (e *Engine) HandleSecondary(ctx context.Context, ev event.PREvent, kind event.Kind) error {
	if !ev.Valid() {
		return fmt.Errorf("event missing repository or number: %+v", ev)
	}

	key := registry.Key{Repository: ev.Repository, Number: ev.Number}
	line := format.SecondaryLine(ev, kind)

	if err := e.registry.PostToThread(ctx, key, line); err != nil {
		if errors.Is(err, registry.ErrNoThread) {
			e.logger.Debug("dropping secondary event, no thread",
				"key", key.String(),
				"kind", kind.String())
			return nil
		}
		return err
	}

	e.logger.Info("posted secondary event to thread",
		"key", key.String(),
		"kind", kind.String(),
		"action", ev.Action)
	return nil
}
