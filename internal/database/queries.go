package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

const (
	insertGroupMessageQuery = "INSERT INTO group_messages (id, room_id, sender_id, sender_name, text, sent_at) " +
		"VALUES ($1, $2, $3, $4, $5, $6)"
	listRoomMessagesQuery = "SELECT id, room_id, sender_id, sender_name, text, sent_at FROM group_messages " +
		"WHERE room_id = $1 ORDER BY sent_at ASC, seq ASC"
	findConversationQuery = "SELECT id, participant_a, participant_b, created_at FROM conversations " +
		"WHERE participant_a = $1 AND participant_b = $2 LIMIT 1"
	getConversationQuery = "SELECT id, participant_a, participant_b, created_at FROM conversations " +
		"WHERE id = $1 LIMIT 1"
	insertConversationQuery = "INSERT INTO conversations (id, participant_a, participant_b, created_at) " +
		"VALUES ($1, $2, $3, $4)"
	listConversationMessagesQuery = "SELECT sender_id, text, sent_at FROM conversation_messages " +
		"WHERE conversation_id = $1 ORDER BY sent_at ASC, seq ASC"
	insertConversationMessageQuery = "INSERT INTO conversation_messages (conversation_id, sender_id, text, sent_at) " +
		"VALUES ($1, $2, $3, $4)"
)

func (db *PgMessageStore) CreateGroupMessage(ctx context.Context, msg GroupMessage) (GroupMessage, error) {
	if msg.Id == "" {
		msg.Id = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = now()
	}

	_, err := db.conn.ExecContext(ctx,
		insertGroupMessageQuery,
		msg.Id,
		msg.RoomId,
		msg.SenderId,
		msg.SenderName,
		msg.Text,
		msg.SentAt,
	)
	if err != nil {
		return GroupMessage{}, fmt.Errorf("insert group message: %w", err)
	}

	return msg, nil
}

func (db *PgMessageStore) ListRoomMessages(ctx context.Context, roomId string) ([]GroupMessage, error) {
	rows, err := db.conn.QueryContext(ctx, listRoomMessagesQuery, roomId)
	if err != nil {
		return nil, fmt.Errorf("list room messages: %w", err)
	}
	defer rows.Close()

	messages := make([]GroupMessage, 0)
	for rows.Next() {
		var msg GroupMessage
		if err := rows.Scan(&msg.Id, &msg.RoomId, &msg.SenderId, &msg.SenderName, &msg.Text, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		msg.SentAt = msg.SentAt.UTC()
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

func (db *PgMessageStore) FindConversation(ctx context.Context, userA, userB string) (Conversation, error) {
	a, b := NormalizePair(userA, userB)
	row := db.conn.QueryRowContext(ctx, findConversationQuery, a, b)

	return scanConversation(row)
}

func (db *PgMessageStore) CreateConversation(ctx context.Context, conv Conversation) (Conversation, error) {
	conv.ParticipantA, conv.ParticipantB = NormalizePair(conv.ParticipantA, conv.ParticipantB)
	if conv.Id == "" {
		sid, err := shortid.Generate()
		if err != nil {
			return Conversation{}, fmt.Errorf("generate conversation id: %w", err)
		}
		conv.Id = sid
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now()
	}

	_, err := db.conn.ExecContext(ctx,
		insertConversationQuery,
		conv.Id,
		conv.ParticipantA,
		conv.ParticipantB,
		conv.CreatedAt,
	)
	if err != nil {
		return Conversation{}, translateConversationInsertError(err)
	}

	conv.Messages = make([]ConversationMessage, 0)
	return conv, nil
}

func (db *PgMessageStore) GetConversation(ctx context.Context, conversationId string) (Conversation, error) {
	conv, err := scanConversation(db.conn.QueryRowContext(ctx, getConversationQuery, conversationId))
	if err != nil {
		return Conversation{}, err
	}

	rows, err := db.conn.QueryContext(ctx, listConversationMessagesQuery, conversationId)
	if err != nil {
		return Conversation{}, fmt.Errorf("list conversation messages: %w", err)
	}
	defer rows.Close()

	conv.Messages = make([]ConversationMessage, 0)
	for rows.Next() {
		var msg ConversationMessage
		if err := rows.Scan(&msg.SenderId, &msg.Text, &msg.SentAt); err != nil {
			return Conversation{}, fmt.Errorf("scan row: %w", err)
		}
		msg.SentAt = msg.SentAt.UTC()
		conv.Messages = append(conv.Messages, msg)
	}

	if err := rows.Err(); err != nil {
		return Conversation{}, fmt.Errorf("rows error: %w", err)
	}

	return conv, nil
}

func (db *PgMessageStore) AppendConversationMessage(ctx context.Context, conversationId string, msg ConversationMessage) (ConversationMessage, error) {
	if msg.SentAt.IsZero() {
		msg.SentAt = now()
	}

	_, err := db.conn.ExecContext(ctx,
		insertConversationMessageQuery,
		conversationId,
		msg.SenderId,
		msg.Text,
		msg.SentAt,
	)
	if err != nil {
		return ConversationMessage{}, translateAppendError(conversationId, err)
	}

	return msg, nil
}

func scanConversation(row *sql.Row) (Conversation, error) {
	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.ParticipantA,
		&conv.ParticipantB,
		&conv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}

	conv.CreatedAt = conv.CreatedAt.UTC()
	return conv, nil
}
