package server

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/npezzotti/go-studychat/internal/database"
	"github.com/npezzotti/go-studychat/internal/stats"
	"github.com/npezzotti/go-studychat/internal/types"
)

// privateRoomPrefix namespaces the per-user channels joined with
// join_private. Regular joins may not use it.
const privateRoomPrefix = "private:"

type eventHandler func(cs *ChatServer, ctx context.Context, msg *ClientMessage)

var eventHandlers = map[eventKind]eventHandler{
	kindJoin:         (*ChatServer).handleJoin,
	kindLeave:        (*ChatServer).handleLeave,
	kindGroupSubmit:  (*ChatServer).handleGroupSubmit,
	kindRegister:     (*ChatServer).handleRegister,
	kindJoinPrivate:  (*ChatServer).handleJoinPrivate,
	kindDirectSubmit: (*ChatServer).handleDirectSubmit,
}

type ChatServer struct {
	log         *log.Logger
	stats       stats.StatsProvider
	authz       RoomAuthorizer
	presence    *PresenceRegistry
	rooms       *RoomManager
	group       *GroupService
	direct      *DirectService
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
	closed      bool
	tasks       sync.WaitGroup
}

func NewChatServer(logger *log.Logger, store database.MessageStore, sp stats.StatsProvider, authz RoomAuthorizer) *ChatServer {
	if authz == nil {
		authz = AllowAllRooms{}
	}

	presence := NewPresenceRegistry()
	rooms := NewRoomManager(sp)
	notifier := NewNotifier(presence)

	return &ChatServer{
		log:      logger,
		stats:    sp,
		authz:    authz,
		presence: presence,
		rooms:    rooms,
		group:    NewGroupService(logger, store, rooms, sp),
		direct:   NewDirectService(logger, store, NewSessionResolver(store), presence, notifier, sp),
		clients:  make(map[*Client]struct{}),
	}
}

// RegisterClient adds a connection and makes its user reachable. It returns
// false once the server is shutting down.
func (cs *ChatServer) RegisterClient(c *Client) bool {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if cs.closed {
		return false
	}

	cs.clients[c] = struct{}{}
	cs.presence.Register(c.userId, c)
	cs.stats.Incr(stats.NumActiveClients)
	return true
}

// UnregisterClient drops every trace of a disconnected client.
func (cs *ChatServer) UnregisterClient(c *Client) {
	cs.clientsLock.Lock()
	_, ok := cs.clients[c]
	delete(cs.clients, c)
	cs.clientsLock.Unlock()

	cs.presence.Unregister(c)
	cs.rooms.LeaveAll(c)
	if ok {
		cs.stats.Decr(stats.NumActiveClients)
	}
}

func (cs *ChatServer) beginTask() bool {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if cs.closed {
		return false
	}
	cs.tasks.Add(1)
	return true
}

func (cs *ChatServer) dispatch(ctx context.Context, msg *ClientMessage) {
	handle, ok := eventHandlers[msg.kind()]
	if !ok {
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if err := validate.Struct(msg); err != nil {
		msg.client.queueMessage(ErrBadRequest(msg.Id, validationReason(err)))
		return
	}

	if !cs.beginTask() {
		msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}
	defer cs.tasks.Done()

	handle(cs, ctx, msg)
}

// claimedIdentity returns the id an event acts as. An empty claim means the
// authenticated user; any other claim must match it.
func claimedIdentity(claimed, authenticated string) (string, bool) {
	if claimed == "" {
		return authenticated, true
	}
	return claimed, claimed == authenticated
}

func (cs *ChatServer) handleJoin(ctx context.Context, msg *ClientMessage) {
	roomId := msg.Join.RoomId
	if strings.HasPrefix(roomId, privateRoomPrefix) {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	allowed, err := cs.authz.CanJoin(ctx, msg.UserId, roomId)
	if err != nil {
		cs.log.Printf("authorize %q for room %q: %v", msg.UserId, roomId, err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}
	if !allowed {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	if err := cs.group.OnJoin(context.WithoutCancel(ctx), roomId, msg.client); err != nil {
		cs.log.Printf("join room %q: %v", roomId, err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{"room_id": roomId}))
}

func (cs *ChatServer) handleLeave(_ context.Context, msg *ClientMessage) {
	cs.group.OnLeave(msg.Leave.RoomId, msg.client)
	msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{"room_id": msg.Leave.RoomId}))
}

func (cs *ChatServer) handleGroupSubmit(ctx context.Context, msg *ClientMessage) {
	submit := msg.GroupSubmit
	senderId, ok := claimedIdentity(submit.SenderId, msg.UserId)
	if !ok {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	if !cs.rooms.IsSubscribed(submit.RoomId, msg.client) {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	_, err := cs.group.OnSubmit(context.WithoutCancel(ctx), submit.RoomId, senderId, submit.SenderName, submit.Text)
	if IsValidationError(err) {
		msg.client.queueMessage(ErrBadRequest(msg.Id, err.Error()))
	}
	// store failures were logged and counted by the group service
}

func (cs *ChatServer) handleRegister(_ context.Context, msg *ClientMessage) {
	userId, ok := claimedIdentity(msg.Register.UserId, msg.UserId)
	if !ok {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	cs.presence.Register(userId, msg.client)
	msg.client.queueMessage(NoErrOK(msg.Id, nil))
}

func (cs *ChatServer) handleJoinPrivate(_ context.Context, msg *ClientMessage) {
	userId, ok := claimedIdentity(msg.JoinPrivate.UserId, msg.UserId)
	if !ok {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	cs.rooms.Join(privateRoomPrefix+userId, msg.client)
	cs.presence.Register(userId, msg.client)
	msg.client.queueMessage(NoErrOK(msg.Id, map[string]any{"room_id": privateRoomPrefix + userId}))
}

func (cs *ChatServer) handleDirectSubmit(ctx context.Context, msg *ClientMessage) {
	submit := msg.DirectSubmit
	senderId, ok := claimedIdentity(submit.SenderId, msg.UserId)
	if !ok {
		msg.client.queueMessage(ErrForbidden(msg.Id))
		return
	}

	conversationId, err := cs.direct.Submit(context.WithoutCancel(ctx), senderId, submit.ReceiverId, submit.Text)
	switch {
	case err == nil:
		msg.client.queueMessage(NoErrAccepted(msg.Id, map[string]any{"conversation_id": conversationId}))
	case IsValidationError(err):
		msg.client.queueMessage(ErrBadRequest(msg.Id, err.Error()))
	case errors.Is(err, ErrNotFound):
		msg.client.queueMessage(ErrNotFoundMessage(msg.Id))
	default:
		cs.log.Printf("dropping direct message from %q to %q: %v", senderId, submit.ReceiverId, err)
		cs.stats.Incr(stats.NumDroppedMessages)
	}
}

// CanReadRoom applies the join rules to a history read.
func (cs *ChatServer) CanReadRoom(ctx context.Context, userId, roomId string) (bool, error) {
	if strings.HasPrefix(roomId, privateRoomPrefix) {
		return false, nil
	}
	return cs.authz.CanJoin(ctx, userId, roomId)
}

func (cs *ChatServer) StartConversation(ctx context.Context, userA, userB string) (string, error) {
	return cs.direct.Start(ctx, userA, userB)
}

func (cs *ChatServer) Conversation(ctx context.Context, conversationId string) (types.Conversation, error) {
	conv, err := cs.direct.History(ctx, conversationId)
	if err != nil {
		return types.Conversation{}, err
	}
	return ConversationToAPI(conv), nil
}

// PostConversationMessage persists a message without pushing it to the
// recipient.
func (cs *ChatServer) PostConversationMessage(ctx context.Context, conversationId, senderId, text string) (types.ConversationMessage, error) {
	msg, err := cs.direct.Store(ctx, conversationId, senderId, text)
	if err != nil {
		return types.ConversationMessage{}, err
	}
	return ConversationMessageToAPI(msg), nil
}

func (cs *ChatServer) RoomHistory(ctx context.Context, roomId string) ([]types.GroupMessage, error) {
	msgs, err := cs.group.History(ctx, roomId)
	if err != nil {
		return nil, err
	}
	return GroupMessagesToAPI(msgs), nil
}

// Shutdown stops every client and waits for in-flight events to finish or
// for ctx to expire.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("shutting down chat server")

	cs.clientsLock.Lock()
	cs.closed = true
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.stopClient()
	}

	done := make(chan struct{})
	go func() {
		cs.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
