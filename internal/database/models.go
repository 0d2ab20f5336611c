package database

import (
	"slices"
	"time"
)

type GroupMessage struct {
	Id         string
	RoomId     string
	SenderId   string
	SenderName string
	Text       string
	SentAt     time.Time
}

type Conversation struct {
	Id           string
	ParticipantA string
	ParticipantB string
	CreatedAt    time.Time
	Messages     []ConversationMessage
}

type ConversationMessage struct {
	SenderId string
	Text     string
	SentAt   time.Time
}

// HasParticipant reports whether userId is one of the two participants.
func (c Conversation) HasParticipant(userId string) bool {
	return userId != "" && (c.ParticipantA == userId || c.ParticipantB == userId)
}

// Peer returns the participant that is not userId.
func (c Conversation) Peer(userId string) string {
	if c.ParticipantA == userId {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// NormalizePair orders a participant pair so that every unordered pair
// has exactly one stored representation. The order is bytewise, which is
// what the "C" collation on the Postgres participant columns checks.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func sortConversationMessages(msgs []ConversationMessage) {
	slices.SortStableFunc(msgs, func(x, y ConversationMessage) int {
		return x.SentAt.Compare(y.SentAt)
	})
}

func now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
