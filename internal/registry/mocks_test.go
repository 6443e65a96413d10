package registry

import (
	"context"
	"fmt"

	"github.com/brettins/discord-pr-manager/internal/format"
)

// MockMessenger is a programmable mock for Messenger.
type MockMessenger struct {
	// Programmable errors
	SendErr   error
	EditErr   error
	ThreadErr error
	PostErr   error

	// Track calls
	SendCalls   []SendCall
	EditCalls   []EditCall
	ThreadCalls []ThreadCall
	PostCalls   []PostCall

	nextMessageID int
	nextThreadID  int
}

type SendCall struct {
	ChannelID    string
	Notification format.Notification
}

type EditCall struct {
	ChannelID    string
	MessageID    string
	Notification format.Notification
}

type ThreadCall struct {
	ChannelID string
	MessageID string
	Name      string
}

type PostCall struct {
	ThreadID string
	Text     string
}

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{}
}

func (m *MockMessenger) SendNotification(_ context.Context, channelID string, n format.Notification) (string, error) {
	m.SendCalls = append(m.SendCalls, SendCall{ChannelID: channelID, Notification: n})
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.nextMessageID++
	return fmt.Sprintf("msg-%d", m.nextMessageID), nil
}

func (m *MockMessenger) EditNotification(_ context.Context, channelID, messageID string, n format.Notification) error {
	m.EditCalls = append(m.EditCalls, EditCall{ChannelID: channelID, MessageID: messageID, Notification: n})
	return m.EditErr
}

func (m *MockMessenger) CreateThread(_ context.Context, channelID, messageID, name string) (string, error) {
	m.ThreadCalls = append(m.ThreadCalls, ThreadCall{ChannelID: channelID, MessageID: messageID, Name: name})
	if m.ThreadErr != nil {
		return "", m.ThreadErr
	}
	m.nextThreadID++
	return fmt.Sprintf("thread-%d", m.nextThreadID), nil
}

func (m *MockMessenger) PostToThread(_ context.Context, threadID, text string) error {
	m.PostCalls = append(m.PostCalls, PostCall{ThreadID: threadID, Text: text})
	return m.PostErr
}
