// Package guilds manages per-guild routing settings and webhook tokens.
package guilds

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds the per-guild settings.
type Config struct {
	WatchChannel string `yaml:"watch_channel,omitempty"`
	PostChannel  string `yaml:"post_channel,omitempty"`
	WebhookToken string `yaml:"webhook_token,omitempty"`
}

// Store owns the guild settings map, persisted as a flat YAML file keyed by
// guild ID. The file is read once at startup and rewritten in full after
// every mutation.
type Store struct {
	path    string
	logger  *slog.Logger
	configs map[int64]Config
	mu      sync.RWMutex
}

// NewStore creates a store backed by the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:    path,
		logger:  logger,
		configs: make(map[int64]Config),
	}
}

// Load reads the settings file. A missing file is not an error; the store
// starts empty and the file appears on first mutation.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no guild settings file, starting empty", "path", s.path)
			return nil
		}
		return fmt.Errorf("read guild settings: %w", err)
	}

	configs := make(map[int64]Config)
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return fmt.Errorf("parse guild settings: %w", err)
	}

	s.mu.Lock()
	s.configs = configs
	s.mu.Unlock()

	s.logger.Info("loaded guild settings",
		"path", s.path,
		"guilds", len(configs))
	return nil
}

// saveLocked rewrites the settings file. Callers must hold the write lock.
func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(s.configs)
	if err != nil {
		return fmt.Errorf("marshal guild settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write guild settings: %w", err)
	}
	return nil
}

// Config returns the settings for a guild (zero value when unconfigured).
func (s *Store) Config(guildID int64) Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configs[guildID]
}

// SetWatchChannel persists the channel whose traffic is scanned for PR
// mentions.
func (s *Store) SetWatchChannel(guildID int64, channelID string) error {
	return s.update(guildID, func(c *Config) { c.WatchChannel = channelID })
}

// SetPostChannel persists the destination channel for rendered
// notifications.
func (s *Store) SetPostChannel(guildID int64, channelID string) error {
	return s.update(guildID, func(c *Config) { c.PostChannel = channelID })
}

func (s *Store) update(guildID int64, mutate func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.configs[guildID]
	cfg := prev
	mutate(&cfg)
	s.configs[guildID] = cfg

	// A failed write rolls the map back so memory never diverges from the
	// settings file.
	if err := s.saveLocked(); err != nil {
		s.rollbackLocked(guildID, prev, had)
		return err
	}
	s.logger.Info("updated guild settings", "guild_id", guildID)
	return nil
}

// rollbackLocked restores a guild's entry after a failed save. Callers must
// hold the write lock.
func (s *Store) rollbackLocked(guildID int64, prev Config, had bool) {
	if had {
		s.configs[guildID] = prev
		return
	}
	delete(s.configs, guildID)
}

// EnsureToken returns the guild's webhook token, minting and persisting one
// when none exists. Repeated calls return the same token.
func (s *Store) EnsureToken(guildID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.configs[guildID]
	if prev.WebhookToken != "" {
		return prev.WebhookToken, nil
	}

	cfg := prev
	cfg.WebhookToken = uuid.New().String()
	s.configs[guildID] = cfg
	if err := s.saveLocked(); err != nil {
		s.rollbackLocked(guildID, prev, had)
		return "", err
	}

	s.logger.Info("minted webhook token", "guild_id", guildID)
	return cfg.WebhookToken, nil
}

// VerifyToken checks a presented webhook token. A guild with no token
// configured accepts any token, so deliveries work before !prbot webhook
// mints one.
func (s *Store) VerifyToken(guildID int64, presented string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.configs[guildID].WebhookToken
	if stored == "" {
		return true
	}
	return presented == stored
}

// Destination resolves the watch and post channels for a guild. The post
// channel defaults to the channel the triggering message arrived on.
func (s *Store) Destination(guildID int64, fallbackChannel string) (watch, post string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.configs[guildID]
	post = cfg.PostChannel
	if post == "" {
		post = fallbackChannel
	}
	return cfg.WatchChannel, post
}
