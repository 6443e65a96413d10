package relay

import (
	"context"
	"fmt"

	"github.com/brettins/discord-pr-manager/internal/format"
)

// MockMessenger is a programmable mock for registry.Messenger.
type MockMessenger struct {
	SendErr   error
	EditErr   error
	ThreadErr error
	PostErr   error

	SendChannels []string
	EditCount    int
	ThreadCount  int
	ThreadPosts  []string

	nextID int
}

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{}
}

func (m *MockMessenger) SendNotification(_ context.Context, channelID string, _ format.Notification) (string, error) {
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.SendChannels = append(m.SendChannels, channelID)
	m.nextID++
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *MockMessenger) EditNotification(_ context.Context, _, _ string, _ format.Notification) error {
	m.EditCount++
	return m.EditErr
}

func (m *MockMessenger) CreateThread(_ context.Context, _, _, _ string) (string, error) {
	if m.ThreadErr != nil {
		return "", m.ThreadErr
	}
	m.ThreadCount++
	return fmt.Sprintf("thread-%d", m.ThreadCount), nil
}

func (m *MockMessenger) PostToThread(_ context.Context, threadID, text string) error {
	if m.PostErr != nil {
		return m.PostErr
	}
	m.ThreadPosts = append(m.ThreadPosts, threadID+": "+text)
	return nil
}

// MockReactor records reactions.
type MockReactor struct {
	Err       error
	Reactions []string
}

func (m *MockReactor) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Reactions = append(m.Reactions, channelID+"/"+messageID+"/"+emoji)
	return nil
}
