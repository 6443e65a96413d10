package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/brettins/discord-pr-manager/internal/format"
)

// MockChat is a thread-safe programmable mock for ChatClient.
type MockChat struct {
	mu sync.Mutex

	Admin  bool
	DMErr  error
	UserID string

	posts     []string
	postChans []string
	dms       []string
	reactions []string
}

func NewMockChat() *MockChat {
	return &MockChat{Admin: true, UserID: "bot-1"}
}

func (m *MockChat) PostMessage(_ context.Context, channelID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, text)
	m.postChans = append(m.postChans, channelID)
	return fmt.Sprintf("msg-%d", len(m.posts)), nil
}

func (m *MockChat) SendDM(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DMErr != nil {
		return m.DMErr
	}
	m.dms = append(m.dms, text)
	return nil
}

func (m *MockChat) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, channelID+"/"+messageID+"/"+emoji)
	return nil
}

func (m *MockChat) IsAdministrator(_ context.Context, _, _ string) bool {
	return m.Admin
}

// ResolveChannel mirrors the production mention handling: <#123> and bare
// numeric IDs resolve, anything else rejects.
func (m *MockChat) ResolveChannel(arg string) string {
	if len(arg) > 3 && arg[:2] == "<#" && arg[len(arg)-1] == '>' {
		return arg[2 : len(arg)-1]
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if arg == "" {
		return ""
	}
	return arg
}

func (m *MockChat) BotUserID() string { return m.UserID }

func (m *MockChat) Posts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.posts...)
}

func (m *MockChat) PostChans() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.postChans...)
}

func (m *MockChat) DMs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dms...)
}

func (m *MockChat) Reactions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reactions...)
}

// MockMessenger backs the registry in command tests.
type MockMessenger struct {
	mu sync.Mutex

	sendChannels []string
	threadPosts  []string
	nextID       int
}

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{}
}

func (m *MockMessenger) SendNotification(_ context.Context, channelID string, _ format.Notification) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendChannels = append(m.sendChannels, channelID)
	m.nextID++
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *MockMessenger) EditNotification(_ context.Context, _, _ string, _ format.Notification) error {
	return nil
}

func (m *MockMessenger) CreateThread(_ context.Context, _, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return fmt.Sprintf("thread-%d", m.nextID), nil
}

func (m *MockMessenger) PostToThread(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threadPosts = append(m.threadPosts, text)
	return nil
}

func (m *MockMessenger) SendChannels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sendChannels...)
}
