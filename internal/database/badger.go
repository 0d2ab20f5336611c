package database

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

// maxTxnRetries bounds how often an append is retried after losing an
// optimistic transaction to a concurrent writer.
const maxTxnRetries = 5

const keySep = "\x00"

// BadgerMessageStore is an embedded MessageStore. Group messages are keyed
// msg\x00{room}{unixnano}\x00{seq} so a prefix scan returns a room's history
// in time order, with equal timestamps in insertion order. Conversations are
// stored as one document with their messages embedded, plus a pair\x00{a}{b}
// index whose single write per pair is what enforces one conversation per
// unordered pair. Ids are written as length-prefixed segments, so no id can
// be a prefix of another id's keys.
type BadgerMessageStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewBadgerMessageStore opens a store at path. An empty path opens an
// in-memory store.
func NewBadgerMessageStore(path string) (*BadgerMessageStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte("seq"+keySep+"msg"), 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("message sequence: %w", err)
	}

	return &BadgerMessageStore{db: db, seq: seq}, nil
}

// appendSegment writes id with a big-endian uint32 length in front of it.
func appendSegment(key []byte, id string) []byte {
	key = binary.BigEndian.AppendUint32(key, uint32(len(id)))
	return append(key, id...)
}

func roomPrefix(roomId string) []byte {
	return appendSegment([]byte("msg"+keySep), roomId)
}

func groupMessageKey(msg GroupMessage, seq uint64) []byte {
	return fmt.Appendf(roomPrefix(msg.RoomId), "%019d%s%020d", msg.SentAt.UnixNano(), keySep, seq)
}

func conversationKey(id string) []byte {
	return []byte("conv" + keySep + id)
}

func pairKey(a, b string) []byte {
	a, b = NormalizePair(a, b)
	return appendSegment(appendSegment([]byte("pair"+keySep), a), b)
}

func (s *BadgerMessageStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: store is closed")
	}
	return nil
}

func (s *BadgerMessageStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("release sequence: %w", err)
	}
	return s.db.Close()
}

func (s *BadgerMessageStore) CreateGroupMessage(_ context.Context, msg GroupMessage) (GroupMessage, error) {
	if msg.Id == "" {
		msg.Id = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = now()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return GroupMessage{}, fmt.Errorf("encode group message: %w", err)
	}

	n, err := s.seq.Next()
	if err != nil {
		return GroupMessage{}, fmt.Errorf("next sequence: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(groupMessageKey(msg, n), value)
	})
	if err != nil {
		return GroupMessage{}, fmt.Errorf("store group message: %w", err)
	}

	return msg, nil
}

func (s *BadgerMessageStore) ListRoomMessages(_ context.Context, roomId string) ([]GroupMessage, error) {
	messages := make([]GroupMessage, 0)
	prefix := roomPrefix(roomId)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg GroupMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list room messages: %w", err)
	}

	return messages, nil
}

func (s *BadgerMessageStore) FindConversation(_ context.Context, userA, userB string) (Conversation, error) {
	var conv Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(userA, userB))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		conv, err = getConversation(txn, string(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("find conversation: %w", err)
	}

	conv.Messages = nil
	return conv, nil
}

func (s *BadgerMessageStore) CreateConversation(_ context.Context, conv Conversation) (Conversation, error) {
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
	conv.Messages = make([]ConversationMessage, 0)

	value, err := json.Marshal(conv)
	if err != nil {
		return Conversation{}, fmt.Errorf("encode conversation: %w", err)
	}

	pair := pairKey(conv.ParticipantA, conv.ParticipantB)
	err = s.db.Update(func(txn *badger.Txn) error {
		// reading the pair key puts it in the read set, so a concurrent
		// creator for the same pair fails its commit with ErrConflict
		_, err := txn.Get(pair)
		if err == nil {
			return ErrConversationExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(conversationKey(conv.Id), value); err != nil {
			return err
		}
		return txn.Set(pair, []byte(conv.Id))
	})
	if errors.Is(err, ErrConversationExists) || errors.Is(err, badger.ErrConflict) {
		return Conversation{}, ErrConversationExists
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("store conversation: %w", err)
	}

	return conv, nil
}

func (s *BadgerMessageStore) GetConversation(_ context.Context, conversationId string) (Conversation, error) {
	var conv Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = getConversation(txn, conversationId)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	sortConversationMessages(conv.Messages)
	return conv, nil
}

func (s *BadgerMessageStore) AppendConversationMessage(_ context.Context, conversationId string, msg ConversationMessage) (ConversationMessage, error) {
	var err error
	for range maxTxnRetries {
		err = s.db.Update(func(txn *badger.Txn) error {
			conv, err := getConversation(txn, conversationId)
			if err != nil {
				return err
			}

			if msg.SentAt.IsZero() {
				msg.SentAt = now()
			}
			conv.Messages = append(conv.Messages, msg)

			value, err := json.Marshal(conv)
			if err != nil {
				return err
			}
			return txn.Set(conversationKey(conversationId), value)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}

	if errors.Is(err, badger.ErrKeyNotFound) {
		return ConversationMessage{}, fmt.Errorf("conversation %q: %w", conversationId, ErrNotFound)
	}
	if err != nil {
		return ConversationMessage{}, fmt.Errorf("append conversation message: %w", err)
	}

	return msg, nil
}

func getConversation(txn *badger.Txn, id string) (Conversation, error) {
	item, err := txn.Get(conversationKey(id))
	if err != nil {
		return Conversation{}, err
	}

	var conv Conversation
	err = item.Value(func(val []byte) error {
		return json.NewDecoder(bytes.NewReader(val)).Decode(&conv)
	})
	if conv.Messages == nil {
		conv.Messages = make([]ConversationMessage, 0)
	}
	return conv, err
}
