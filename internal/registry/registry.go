// Package registry tracks the mapping from PR identity to the Discord
// message and thread that represent it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brettins/discord-pr-manager/internal/format"
)

const (
	// maxEntries bounds how many PR conversations are tracked before the
	// oldest entries are evicted. Entries are otherwise never removed.
	maxEntries = 5000
)

// Sentinel errors callers branch on.
var (
	// ErrEditFailed wraps a failed in-place edit of a tracked message.
	// The registry never falls back to creating a duplicate notification.
	ErrEditFailed = errors.New("edit of tracked notification failed")

	// ErrNoThread indicates no follow-up thread exists for the key.
	ErrNoThread = errors.New("no thread for key")

	// ErrThreadUnavailable indicates thread creation failed earlier for
	// this key; it is never retried.
	ErrThreadUnavailable = errors.New("thread permanently unavailable for key")

	// ErrUntracked indicates the key has no primary notification yet.
	ErrUntracked = errors.New("key is not tracked")
)

// Key is the unique identity of a PR conversation. Equality is exact
// string equality; no case folding or whitespace normalization is applied.
type Key struct {
	Repository string
	Number     string
}

func (k Key) String() string {
	return k.Repository + "#" + k.Number
}

// MessageRef is an opaque handle to a posted notification message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Messenger is the narrow platform capability the registry drives.
type Messenger interface {
	SendNotification(ctx context.Context, channelID string, n format.Notification) (messageID string, err error)
	EditNotification(ctx context.Context, channelID, messageID string, n format.Notification) error
	CreateThread(ctx context.Context, channelID, messageID, name string) (threadID string, err error)
	PostToThread(ctx context.Context, threadID, text string) error
}

// Outcome reports what an Upsert did.
type Outcome int

// Upsert outcomes.
const (
	Created Outcome = iota
	Updated
)

func (o Outcome) String() string {
	if o == Created {
		return "created"
	}
	return "updated"
}

type record struct {
	message      MessageRef
	threadID     string
	threadFailed bool
}

// Registry holds one record per PR conversation for the process lifetime.
// Single-writer access per key is assumed (the dispatch queue serializes
// all event processing); the mutex only guards the map itself.
type Registry struct {
	messenger Messenger
	logger    *slog.Logger
	records   map[Key]*record
	order     []Key
	mu        sync.RWMutex
}

// New creates a registry driving the given messenger.
func New(m Messenger, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		messenger: m,
		logger:    logger,
		records:   make(map[Key]*record),
	}
}

// Upsert creates the primary notification for a key, or edits the existing
// one in place. On edit failure the stored record is left untouched and the
// error wraps ErrEditFailed; the caller decides what to report.
func (r *Registry) Upsert(ctx context.Context, key Key, channelID string, n format.Notification) (Outcome, MessageRef, error) {
	r.mu.RLock()
	rec, exists := r.records[key]
	r.mu.RUnlock()

	if exists {
		if err := r.messenger.EditNotification(ctx, rec.message.ChannelID, rec.message.MessageID, n); err != nil {
			r.logger.Warn("failed to edit tracked notification",
				"key", key.String(),
				"channel_id", rec.message.ChannelID,
				"message_id", rec.message.MessageID,
				"error", err)
			return Updated, rec.message, fmt.Errorf("%w: %w", ErrEditFailed, err)
		}
		r.logger.Info("updated PR notification",
			"key", key.String(),
			"message_id", rec.message.MessageID)
		return Updated, rec.message, nil
	}

	messageID, err := r.messenger.SendNotification(ctx, channelID, n)
	if err != nil {
		return Created, MessageRef{}, fmt.Errorf("create notification for %s: %w", key.String(), err)
	}

	ref := MessageRef{ChannelID: channelID, MessageID: messageID}

	r.mu.Lock()
	r.records[key] = &record{message: ref}
	r.order = append(r.order, key)
	r.evictLocked()
	r.mu.Unlock()

	r.logger.Info("created PR notification",
		"key", key.String(),
		"channel_id", channelID,
		"message_id", messageID)
	return Created, ref, nil
}

// evictLocked drops the oldest tracked conversations once the registry
// exceeds its capacity. Callers must hold the write lock.
func (r *Registry) evictLocked() {
	if len(r.records) <= maxEntries {
		return
	}
	toRemove := max(maxEntries/10, 1)
	for i := 0; i < toRemove && len(r.order) > 0; i++ {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.records, oldest)
	}
	r.logger.Info("evicted oldest PR conversations",
		"removed", toRemove,
		"remaining", len(r.records))
}

// AttachThread lazily creates the follow-up thread for a key. It is an
// idempotent no-op when a thread already exists. A creation failure marks
// the key permanently thread-less; it is logged once and never retried.
func (r *Registry) AttachThread(ctx context.Context, key Key, name string) (string, error) {
	r.mu.RLock()
	rec, exists := r.records[key]
	r.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("attach thread for %s: %w", key.String(), ErrUntracked)
	}
	if rec.threadID != "" {
		return rec.threadID, nil
	}
	if rec.threadFailed {
		return "", fmt.Errorf("attach thread for %s: %w", key.String(), ErrThreadUnavailable)
	}

	threadID, err := r.messenger.CreateThread(ctx, rec.message.ChannelID, rec.message.MessageID, name)
	if err != nil {
		r.mu.Lock()
		rec.threadFailed = true
		r.mu.Unlock()
		r.logger.Warn("thread creation failed, key degraded to thread-less",
			"key", key.String(),
			"error", err)
		return "", fmt.Errorf("create thread for %s: %w", key.String(), err)
	}

	r.mu.Lock()
	rec.threadID = threadID
	r.mu.Unlock()

	r.logger.Info("attached follow-up thread",
		"key", key.String(),
		"thread_id", threadID)
	return threadID, nil
}

// PostToThread posts a line to the key's follow-up thread. Returns
// ErrNoThread when the key is untracked, thread-less, or degraded.
func (r *Registry) PostToThread(ctx context.Context, key Key, text string) error {
	r.mu.RLock()
	rec, exists := r.records[key]
	var threadID string
	if exists {
		threadID = rec.threadID
	}
	r.mu.RUnlock()

	if !exists || threadID == "" {
		return fmt.Errorf("post to thread for %s: %w", key.String(), ErrNoThread)
	}

	if err := r.messenger.PostToThread(ctx, threadID, text); err != nil {
		return fmt.Errorf("post to thread for %s: %w", key.String(), err)
	}
	return nil
}

// Tracked reports whether a key has a primary notification.
func (r *Registry) Tracked(key Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.records[key]
	return exists
}

// Len returns the number of tracked PR conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
