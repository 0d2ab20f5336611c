package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-studychat/internal/stats"
	"github.com/npezzotti/go-studychat/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func clientMessage(c *Client, id int) *ClientMessage {
	return &ClientMessage{
		BaseMessage: BaseMessage{Id: id, Timestamp: Now()},
		UserId:      c.userId,
		client:      c,
	}
}

func TestChatServer_dispatch(t *testing.T) {
	tcases := []struct {
		name    string
		authz   RoomAuthorizer
		prepare func(cs *ChatServer, c *Client)
		msg     func(c *Client) *ClientMessage
		code    int
	}{
		{
			name: "no variant",
			msg:  func(c *Client) *ClientMessage { return clientMessage(c, 1) },
			code: http.StatusBadRequest,
		},
		{
			name: "two variants",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.Join = &Join{RoomId: "r"}
				m.Leave = &Leave{RoomId: "r"}
				return m
			},
			code: http.StatusBadRequest,
		},
		{
			name: "missing required field",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.Join = &Join{}
				return m
			},
			code: http.StatusBadRequest,
		},
		{
			name: "join private namespace",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.Join = &Join{RoomId: privateRoomPrefix + "bob"}
				return m
			},
			code: http.StatusForbidden,
		},
		{
			name:  "join denied",
			authz: denyRooms{},
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.Join = &Join{RoomId: "secret"}
				return m
			},
			code: http.StatusForbidden,
		},
		{
			name:  "authorizer failure",
			authz: denyRooms{err: errors.New("membership service down")},
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.Join = &Join{RoomId: "r"}
				return m
			},
			code: http.StatusInternalServerError,
		},
		{
			name: "leave",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.Leave = &Leave{RoomId: "r"}
				return m
			},
			code: http.StatusOK,
		},
		{
			name: "group submit as someone else",
			prepare: func(cs *ChatServer, c *Client) {
				cs.rooms.Join("r", c)
			},
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.GroupSubmit = &GroupSubmit{RoomId: "r", SenderId: "mallory", SenderName: "M", Text: "hi"}
				return m
			},
			code: http.StatusForbidden,
		},
		{
			name: "group submit without joining",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.GroupSubmit = &GroupSubmit{RoomId: "r", SenderName: "A", Text: "hi"}
				return m
			},
			code: http.StatusForbidden,
		},
		{
			name: "register as someone else",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.Register = &Register{UserId: "mallory"}
				return m
			},
			code: http.StatusForbidden,
		},
		{
			name: "register",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.Register = &Register{UserId: c.userId}
				return m
			},
			code: http.StatusOK,
		},
		{
			name: "direct submit to self",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.DirectSubmit = &DirectSubmit{ReceiverId: c.userId, Text: "hi"}
				return m
			},
			code: http.StatusBadRequest,
		},
		{
			name: "direct submit",
			msg: func(c *Client) *ClientMessage {
				m := clientMessage(c, 1)
				m.DirectSubmit = &DirectSubmit{ReceiverId: "bob", Text: "hi"}
				return m
			},
			code: http.StatusAccepted,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cs := newTestChatServer(t, testutil.InMemoryStore(t), tc.authz)
			c := newTestClient(t, "alice")
			if tc.prepare != nil {
				tc.prepare(cs, c)
			}

			cs.dispatch(context.Background(), tc.msg(c))

			resps := responses(drain(c))
			if assert.Len(t, resps, 1) {
				assert.Equal(t, tc.code, resps[0].ResponseCode)
			}
		})
	}
}

func TestChatServer_JoinAndSubmit(t *testing.T) {
	cs := newTestChatServer(t, testutil.InMemoryStore(t), nil)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")
	assert.True(t, cs.RegisterClient(alice))
	assert.True(t, cs.RegisterClient(bob))

	for _, c := range []*Client{alice, bob} {
		m := clientMessage(c, 1)
		m.Join = &Join{RoomId: "study-101"}
		cs.dispatch(c.ctx, m)

		msgs := drain(c)
		if assert.Len(t, msgs, 2) {
			assert.NotNil(t, msgs[0].History, "expected history before the join ack")
			assert.Equal(t, http.StatusOK, msgs[1].Response.ResponseCode)
		}
	}

	submit := clientMessage(bob, 2)
	submit.GroupSubmit = &GroupSubmit{RoomId: "study-101", SenderName: "Bob", Text: "hi"}
	cs.dispatch(bob.ctx, submit)

	assert.Equal(t, []string{"hi"}, groupTexts(drain(alice)))
	bobMsgs := drain(bob)
	assert.Equal(t, []string{"hi"}, groupTexts(bobMsgs), "expected the sender to receive its own echo")
	assert.Empty(t, responses(bobMsgs), "expected no ack for a delivered group message")

	history, err := cs.RoomHistory(context.Background(), "study-101")
	assert.NoError(t, err)
	if assert.Len(t, history, 1) {
		assert.Equal(t, "bob", history[0].SenderId, "expected the authenticated id to be used")
	}
}

func TestChatServer_DirectSubmitDelivery(t *testing.T) {
	cs := newTestChatServer(t, testutil.InMemoryStore(t), nil)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")
	assert.True(t, cs.RegisterClient(alice))
	assert.True(t, cs.RegisterClient(bob))

	m := clientMessage(alice, 5)
	m.DirectSubmit = &DirectSubmit{SenderId: "alice", ReceiverId: "bob", Text: "psst"}
	cs.dispatch(alice.ctx, m)

	resps := responses(drain(alice))
	if assert.Len(t, resps, 1) {
		assert.Equal(t, http.StatusAccepted, resps[0].ResponseCode)
		assert.NotEmpty(t, resps[0].Data["conversation_id"])
	}

	bobMsgs := drain(bob)
	if assert.Len(t, bobMsgs, 2) && assert.NotNil(t, bobMsgs[0].Direct) {
		assert.Equal(t, "psst", bobMsgs[0].Direct.Text)
		assert.Equal(t, resps[0].Data["conversation_id"], bobMsgs[0].Direct.ConversationId)
		assert.NotNil(t, bobMsgs[1].Notification)
	}
}

func TestChatServer_JoinPrivate(t *testing.T) {
	cs := newTestChatServer(t, testutil.InMemoryStore(t), nil)
	c := newTestClient(t, "alice")

	m := clientMessage(c, 1)
	m.JoinPrivate = &JoinPrivate{}
	cs.dispatch(c.ctx, m)

	resps := responses(drain(c))
	if assert.Len(t, resps, 1) {
		assert.Equal(t, http.StatusOK, resps[0].ResponseCode)
	}
	assert.True(t, cs.rooms.IsSubscribed(privateRoomPrefix+"alice", c))
	conn, ok := cs.presence.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, c, conn)
}

func TestChatServer_RegisterUnregister(t *testing.T) {
	sp := &stats.MockStatsUpdater{}
	sp.On("Incr", stats.NumActiveClients).Once()
	sp.On("Decr", stats.NumActiveClients).Once()
	sp.On("Incr", stats.NumActiveRooms).Once()
	sp.On("Decr", stats.NumActiveRooms).Once()
	defer sp.AssertExpectations(t)

	cs := NewChatServer(testutil.TestLogger(t), testutil.InMemoryStore(t), sp, nil)
	c := newTestClient(t, "alice")

	assert.True(t, cs.RegisterClient(c))
	_, ok := cs.presence.Lookup("alice")
	assert.True(t, ok, "expected the user to be reachable after connecting")

	cs.rooms.Join("r", c)
	cs.UnregisterClient(c)
	cs.UnregisterClient(c)

	_, ok = cs.presence.Lookup("alice")
	assert.False(t, ok)
	assert.Empty(t, cs.rooms.Subscribers("r"))
}

func TestChatServer_Shutdown(t *testing.T) {
	cs := newTestChatServer(t, testutil.InMemoryStore(t), nil)
	c := newTestClient(t, "alice")
	assert.True(t, cs.RegisterClient(c))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, cs.Shutdown(ctx))

	select {
	case <-c.stop:
	default:
		t.Error("expected clients to be stopped")
	}

	assert.False(t, cs.RegisterClient(newTestClient(t, "bob")), "expected no new clients after shutdown")

	m := clientMessage(c, 9)
	m.Leave = &Leave{RoomId: "r"}
	cs.dispatch(context.Background(), m)
	resps := responses(drain(c))
	if assert.Len(t, resps, 1) {
		assert.Equal(t, http.StatusServiceUnavailable, resps[0].ResponseCode)
	}
}

func TestChatServer_ShutdownWaitsForTasks(t *testing.T) {
	cs := newTestChatServer(t, testutil.InMemoryStore(t), nil)
	assert.True(t, cs.beginTask())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, cs.Shutdown(ctx), context.DeadlineExceeded)

	cs.tasks.Done()
	assert.NoError(t, cs.Shutdown(context.Background()))
}

func TestChatServer_Conversations(t *testing.T) {
	ctx := context.Background()
	cs := newTestChatServer(t, testutil.InMemoryStore(t), nil)

	id, err := cs.StartConversation(ctx, "alice", "bob")
	assert.NoError(t, err)

	_, err = cs.PostConversationMessage(ctx, id, "bob", "hey")
	assert.NoError(t, err)

	conv, err := cs.Conversation(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, conv.Participants)
	if assert.Len(t, conv.Messages, 1) {
		assert.Equal(t, "hey", conv.Messages[0].Text)
	}

	_, err = cs.Conversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatServer_CanReadRoom(t *testing.T) {
	cs := newTestChatServer(t, testutil.InMemoryStore(t), nil)

	ok, err := cs.CanReadRoom(context.Background(), "alice", "study-101")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = cs.CanReadRoom(context.Background(), "alice", privateRoomPrefix+"bob")
	assert.NoError(t, err)
	assert.False(t, ok)
}
