package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockMessageStore) CreateGroupMessage(ctx context.Context, msg GroupMessage) (GroupMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(GroupMessage), args.Error(1)
}
func (m *MockMessageStore) ListRoomMessages(ctx context.Context, roomId string) ([]GroupMessage, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).([]GroupMessage), args.Error(1)
}
func (m *MockMessageStore) FindConversation(ctx context.Context, userA, userB string) (Conversation, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessageStore) CreateConversation(ctx context.Context, conv Conversation) (Conversation, error) {
	args := m.Called(ctx, conv)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessageStore) GetConversation(ctx context.Context, conversationId string) (Conversation, error) {
	args := m.Called(ctx, conversationId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessageStore) AppendConversationMessage(ctx context.Context, conversationId string, msg ConversationMessage) (ConversationMessage, error) {
	args := m.Called(ctx, conversationId, msg)
	return args.Get(0).(ConversationMessage), args.Error(1)
}
func (m *MockMessageStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
