package server

import (
	"context"
	"log"

	"github.com/npezzotti/go-studychat/internal/database"
	"github.com/npezzotti/go-studychat/internal/stats"
	"github.com/npezzotti/go-studychat/internal/types"
)

// DirectService handles one-to-one conversations. Messages are always
// persisted; recipients that are online also get them pushed.
type DirectService struct {
	log      *log.Logger
	store    database.MessageStore
	resolver *SessionResolver
	presence *PresenceRegistry
	notifier *Notifier
	stats    stats.StatsProvider
}

func NewDirectService(logger *log.Logger, store database.MessageStore, resolver *SessionResolver,
	presence *PresenceRegistry, notifier *Notifier, sp stats.StatsProvider) *DirectService {
	return &DirectService{
		log:      logger,
		store:    store,
		resolver: resolver,
		presence: presence,
		notifier: notifier,
		stats:    sp,
	}
}

// Start returns the conversation between a and b, creating it if needed.
func (d *DirectService) Start(ctx context.Context, a, b string) (string, error) {
	return d.resolver.Resolve(ctx, a, b)
}

// Send appends a message to the conversation and pushes it to the other
// participant if they are connected. It reports whether the push was queued.
func (d *DirectService) Send(ctx context.Context, conversationId, senderId, text string) (database.ConversationMessage, bool, error) {
	msg, conv, err := d.persist(ctx, conversationId, senderId, text)
	if err != nil {
		return database.ConversationMessage{}, false, err
	}

	recipient := conv.Peer(senderId)
	conn, ok := d.presence.Lookup(recipient)
	if !ok {
		return msg, false, nil
	}

	delivered := conn.queueMessage(directMessageEvent(conversationId, msg))
	d.notifier.Notify(recipient, types.Notification{
		Sender:  senderId,
		Message: msg.Text,
	})

	return msg, delivered, nil
}

// Store appends a message to the conversation without any live delivery.
func (d *DirectService) Store(ctx context.Context, conversationId, senderId, text string) (database.ConversationMessage, error) {
	msg, _, err := d.persist(ctx, conversationId, senderId, text)
	return msg, err
}

// Submit resolves the conversation between sender and receiver and sends
// text on it.
func (d *DirectService) Submit(ctx context.Context, senderId, receiverId, text string) (string, error) {
	if text == "" {
		return "", &ValidationError{Field: "text", Reason: "is required"}
	}

	conversationId, err := d.Start(ctx, senderId, receiverId)
	if err != nil {
		return "", err
	}

	if _, _, err := d.Send(ctx, conversationId, senderId, text); err != nil {
		return "", err
	}
	return conversationId, nil
}

// History returns the conversation with its messages in ascending order.
func (d *DirectService) History(ctx context.Context, conversationId string) (database.Conversation, error) {
	if conversationId == "" {
		return database.Conversation{}, &ValidationError{Field: "conversation_id", Reason: "is required"}
	}

	conv, err := d.store.GetConversation(ctx, conversationId)
	if err != nil {
		return database.Conversation{}, storeError("get conversation", err)
	}
	return conv, nil
}

func (d *DirectService) persist(ctx context.Context, conversationId, senderId, text string) (database.ConversationMessage, database.Conversation, error) {
	switch {
	case conversationId == "":
		return database.ConversationMessage{}, database.Conversation{}, &ValidationError{Field: "conversation_id", Reason: "is required"}
	case senderId == "":
		return database.ConversationMessage{}, database.Conversation{}, &ValidationError{Field: "sender_id", Reason: "is required"}
	case text == "":
		return database.ConversationMessage{}, database.Conversation{}, &ValidationError{Field: "text", Reason: "is required"}
	}

	conv, err := d.store.GetConversation(ctx, conversationId)
	if err != nil {
		return database.ConversationMessage{}, database.Conversation{}, storeError("get conversation", err)
	}
	if !conv.HasParticipant(senderId) {
		return database.ConversationMessage{}, database.Conversation{}, &ValidationError{
			Field:  "sender_id",
			Reason: ErrNotParticipant.Error(),
			Err:    ErrNotParticipant,
		}
	}

	msg, err := d.store.AppendConversationMessage(ctx, conversationId, database.ConversationMessage{
		SenderId: senderId,
		Text:     text,
		SentAt:   Now(),
	})
	if err != nil {
		return database.ConversationMessage{}, database.Conversation{}, storeError("append conversation message", err)
	}
	d.stats.Incr(stats.NumDirectMessages)

	return msg, conv, nil
}
