package server

import (
	"context"
	"log"
	"sync"

	"github.com/npezzotti/go-studychat/internal/database"
	"github.com/npezzotti/go-studychat/internal/stats"
)

// GroupService persists room messages and fans them out to the room's
// subscribers.
type GroupService struct {
	log   *log.Logger
	store database.MessageStore
	rooms *RoomManager
	stats stats.StatsProvider

	// sequencers serialize persist+broadcast and join+history per room. An
	// entry lives only while some operation on the room holds or waits for it.
	seqLock    sync.Mutex
	sequencers map[string]*roomSequencer
}

type roomSequencer struct {
	mu   sync.Mutex
	refs int
}

func NewGroupService(logger *log.Logger, store database.MessageStore, rooms *RoomManager, sp stats.StatsProvider) *GroupService {
	return &GroupService{
		log:        logger,
		store:      store,
		rooms:      rooms,
		stats:      sp,
		sequencers: make(map[string]*roomSequencer),
	}
}

// lockRoom acquires roomId's sequencer and returns the function releasing it.
func (g *GroupService) lockRoom(roomId string) func() {
	g.seqLock.Lock()
	seq, ok := g.sequencers[roomId]
	if !ok {
		seq = &roomSequencer{}
		g.sequencers[roomId] = seq
	}
	seq.refs++
	g.seqLock.Unlock()

	seq.mu.Lock()
	return func() {
		seq.mu.Unlock()

		g.seqLock.Lock()
		seq.refs--
		if seq.refs == 0 {
			delete(g.sequencers, roomId)
		}
		g.seqLock.Unlock()
	}
}

// OnJoin subscribes conn to roomId and sends it the room's history. A message
// persisted concurrently is seen by conn either in the history or live, never
// both. If the history cannot be read, a subscription made by this call is
// undone.
func (g *GroupService) OnJoin(ctx context.Context, roomId string, conn Connection) error {
	if roomId == "" {
		return &ValidationError{Field: "room_id", Reason: "is required"}
	}

	defer g.lockRoom(roomId)()

	wasSubscribed := g.rooms.IsSubscribed(roomId, conn)
	g.rooms.Join(roomId, conn)

	msgs, err := g.store.ListRoomMessages(ctx, roomId)
	if err != nil {
		if !wasSubscribed {
			g.rooms.Leave(roomId, conn)
		}
		return storeError("list room messages", err)
	}

	conn.queueMessage(historyMessage(roomId, msgs))
	return nil
}

// OnSubmit stores a message and broadcasts it to every subscriber of the
// room, the sender included. A store failure is logged and the message is
// dropped without a broadcast.
func (g *GroupService) OnSubmit(ctx context.Context, roomId, senderId, senderName, text string) (database.GroupMessage, error) {
	if err := validateGroupSubmit(roomId, senderId, senderName, text); err != nil {
		return database.GroupMessage{}, err
	}

	defer g.lockRoom(roomId)()

	msg, err := g.store.CreateGroupMessage(ctx, database.GroupMessage{
		RoomId:     roomId,
		SenderId:   senderId,
		SenderName: senderName,
		Text:       text,
		SentAt:     Now(),
	})
	if err != nil {
		g.log.Printf("dropping message from %q to room %q: %v", senderId, roomId, err)
		g.stats.Incr(stats.NumDroppedMessages)
		return database.GroupMessage{}, storeError("create group message", err)
	}
	g.stats.Incr(stats.NumGroupMessages)

	event := groupMessageEvent(msg)
	for _, sub := range g.rooms.Subscribers(roomId) {
		sub.queueMessage(event)
	}

	return msg, nil
}

func (g *GroupService) OnLeave(roomId string, conn Connection) {
	g.rooms.Leave(roomId, conn)
}

// History returns the room's messages without subscribing.
func (g *GroupService) History(ctx context.Context, roomId string) ([]database.GroupMessage, error) {
	if roomId == "" {
		return nil, &ValidationError{Field: "room_id", Reason: "is required"}
	}

	msgs, err := g.store.ListRoomMessages(ctx, roomId)
	if err != nil {
		return nil, storeError("list room messages", err)
	}
	return msgs, nil
}

func validateGroupSubmit(roomId, senderId, senderName, text string) error {
	switch {
	case roomId == "":
		return &ValidationError{Field: "room_id", Reason: "is required"}
	case senderId == "":
		return &ValidationError{Field: "sender_id", Reason: "is required"}
	case senderName == "":
		return &ValidationError{Field: "sender_name", Reason: "is required"}
	case text == "":
		return &ValidationError{Field: "text", Reason: "is required"}
	}
	return nil
}
