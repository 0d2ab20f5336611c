package types

import (
	"time"
)

type GroupMessage struct {
	Id         string    `json:"id"`
	RoomId     string    `json:"room_id"`
	SenderId   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

type Conversation struct {
	Id           string                `json:"id"`
	Participants []string              `json:"participants"`
	CreatedAt    time.Time             `json:"created_at"`
	Messages     []ConversationMessage `json:"messages"`
}

type ConversationMessage struct {
	SenderId string    `json:"sender_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// DirectMessage is what a recipient's connection receives when a
// conversation message is delivered live.
type DirectMessage struct {
	ConversationId string    `json:"conversation_id"`
	SenderId       string    `json:"sender_id"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sent_at"`
}

type Notification struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}
