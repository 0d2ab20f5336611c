package server

import (
	"context"
	"testing"

	"github.com/npezzotti/go-studychat/internal/database"
	"github.com/npezzotti/go-studychat/internal/stats"
	"github.com/npezzotti/go-studychat/internal/testutil"
	"github.com/npezzotti/go-studychat/internal/types"
	"github.com/stretchr/testify/mock"
)

func newTestClient(t *testing.T, userId string) *Client {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Client{
		userId: userId,
		log:    testutil.TestLogger(t),
		send:   make(chan *ServerMessage, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
	}
}

// permissiveStats accepts any counter update.
func permissiveStats() *stats.MockStatsUpdater {
	sp := &stats.MockStatsUpdater{}
	sp.On("Incr", mock.Anything).Maybe()
	sp.On("Decr", mock.Anything).Maybe()
	return sp
}

func newTestChatServer(t *testing.T, store database.MessageStore, authz RoomAuthorizer) *ChatServer {
	t.Helper()
	return NewChatServer(testutil.TestLogger(t), store, permissiveStats(), authz)
}

// drain returns every message queued on c so far.
func drain(c *Client) []*ServerMessage {
	var msgs []*ServerMessage
	for {
		select {
		case m := <-c.send:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func groupTexts(msgs []*ServerMessage) []string {
	var texts []string
	for _, m := range msgs {
		if m.Message != nil {
			texts = append(texts, m.Message.Text)
		}
	}
	return texts
}

func responses(msgs []*ServerMessage) []*Response {
	var out []*Response
	for _, m := range msgs {
		if m.Response != nil {
			out = append(out, m.Response)
		}
	}
	return out
}

type denyRooms struct {
	err error
}

func (d denyRooms) CanJoin(context.Context, string, string) (bool, error) {
	return false, d.err
}

func notificationFixture() types.Notification {
	return types.Notification{Sender: "bob", Message: "new message"}
}
