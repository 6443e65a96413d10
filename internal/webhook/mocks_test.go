package webhook

import (
	"context"
	"fmt"
	"sync"

	"github.com/brettins/discord-pr-manager/internal/format"
)

// MockMessenger is a thread-safe programmable mock for registry.Messenger.
// Webhook jobs run on the dispatch worker goroutine, so all state is
// mutex-guarded.
type MockMessenger struct {
	mu sync.Mutex

	SendErr error

	sendChannels []string
	sendTitles   []string
	editTitles   []string
	threadPosts  []string

	nextID int
}

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{}
}

func (m *MockMessenger) SendNotification(_ context.Context, channelID string, n format.Notification) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.sendChannels = append(m.sendChannels, channelID)
	m.sendTitles = append(m.sendTitles, n.Title)
	m.nextID++
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *MockMessenger) EditNotification(_ context.Context, _, _ string, n format.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editTitles = append(m.editTitles, n.Title)
	return nil
}

func (m *MockMessenger) CreateThread(_ context.Context, _, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return fmt.Sprintf("thread-%d", m.nextID), nil
}

func (m *MockMessenger) PostToThread(_ context.Context, threadID, text string) error {
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

func (m *MockMessenger) SendTitles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sendTitles...)
}

func (m *MockMessenger) EditTitles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.editTitles...)
}

func (m *MockMessenger) ThreadPosts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.threadPosts...)
}
