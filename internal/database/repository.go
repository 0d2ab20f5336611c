package database

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConversationExists = errors.New("conversation already exists for participants")
)

// MessageStore is the durable, append-only persistence for group and
// conversation messages.
type MessageStore interface {
	Ping(ctx context.Context) error
	CreateGroupMessage(ctx context.Context, msg GroupMessage) (GroupMessage, error)
	ListRoomMessages(ctx context.Context, roomId string) ([]GroupMessage, error)
	FindConversation(ctx context.Context, userA, userB string) (Conversation, error)
	CreateConversation(ctx context.Context, conv Conversation) (Conversation, error)
	GetConversation(ctx context.Context, conversationId string) (Conversation, error)
	AppendConversationMessage(ctx context.Context, conversationId string, msg ConversationMessage) (ConversationMessage, error)
	Close() error
}
