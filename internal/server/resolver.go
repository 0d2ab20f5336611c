package server

import (
	"context"
	"errors"

	"github.com/npezzotti/go-studychat/internal/database"
)

// SessionResolver maps an unordered pair of users to their single durable
// conversation, creating it on first use.
type SessionResolver struct {
	store database.MessageStore
}

func NewSessionResolver(store database.MessageStore) *SessionResolver {
	return &SessionResolver{store: store}
}

// Resolve returns the id of the conversation between userA and userB. The
// result does not depend on argument order, and concurrent callers for the
// same pair all get the id of the one conversation the store kept.
func (r *SessionResolver) Resolve(ctx context.Context, userA, userB string) (string, error) {
	if userA == "" || userB == "" || userA == userB {
		return "", invalidParticipants()
	}

	a, b := database.NormalizePair(userA, userB)
	conv, err := r.store.FindConversation(ctx, a, b)
	if err == nil {
		return conv.Id, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", storeError("find conversation", err)
	}

	conv, err = r.store.CreateConversation(ctx, database.Conversation{
		ParticipantA: a,
		ParticipantB: b,
	})
	if err == nil {
		return conv.Id, nil
	}
	if !errors.Is(err, database.ErrConversationExists) {
		return "", storeError("create conversation", err)
	}

	// lost the race, the winner's row is there now
	conv, err = r.store.FindConversation(ctx, a, b)
	if err != nil {
		return "", storeError("find conversation", err)
	}
	return conv.Id, nil
}
