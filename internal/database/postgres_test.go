package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func Test_translateConversationInsertError(t *testing.T) {
	tcases := []struct {
		name     string
		err      error
		isExists bool
	}{
		{
			name:     "pair unique violation",
			err:      &pq.Error{Code: uniqueViolation, Constraint: conversationPairConstraint},
			isExists: true,
		},
		{
			name:     "wrapped pair unique violation",
			err:      fmt.Errorf("exec: %w", &pq.Error{Code: uniqueViolation, Constraint: conversationPairConstraint}),
			isExists: true,
		},
		{
			name:     "primary key violation",
			err:      &pq.Error{Code: uniqueViolation, Constraint: "conversations_pkey"},
			isExists: false,
		},
		{
			name:     "participant order check violation",
			err:      &pq.Error{Code: "23514", Constraint: "conversations_participants_ordered"},
			isExists: false,
		},
		{
			name:     "other error",
			err:      errors.New("connection refused"),
			isExists: false,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := translateConversationInsertError(tc.err)
			assert.Equal(t, tc.isExists, errors.Is(err, ErrConversationExists))
			if !tc.isExists {
				assert.ErrorIs(t, err, tc.err, "expected the original error to be wrapped")
			}
		})
	}
}

func Test_translateAppendError(t *testing.T) {
	err := translateAppendError("abc", &pq.Error{Code: foreignKeyViolation})
	assert.ErrorIs(t, err, ErrNotFound)

	orig := errors.New("timeout")
	err = translateAppendError("abc", orig)
	assert.ErrorIs(t, err, orig)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMigrationsOrderParticipantsBytewise(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_create_messages.up.sql")
	assert.NoError(t, err)
	assert.Contains(t, string(up), `participant_a TEXT COLLATE "C"`)
	assert.Contains(t, string(up), `participant_b TEXT COLLATE "C"`)

	a, b := NormalizePair("alice", "Bob")
	assert.Equal(t, "Bob", a, "expected uppercase to sort before lowercase")
	assert.Equal(t, "alice", b)
}

func TestNormalizePair(t *testing.T) {
	a, b := NormalizePair("bob", "alice")
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	a, b = NormalizePair("alice", "bob")
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)
}

func TestConversation_Participants(t *testing.T) {
	conv := Conversation{ParticipantA: "alice", ParticipantB: "bob"}

	assert.True(t, conv.HasParticipant("alice"))
	assert.True(t, conv.HasParticipant("bob"))
	assert.False(t, conv.HasParticipant("carol"))
	assert.False(t, conv.HasParticipant(""))
	assert.Equal(t, "bob", conv.Peer("alice"))
	assert.Equal(t, "alice", conv.Peer("bob"))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("mongo", "", "")
	assert.Error(t, err)
}

func TestOpen_Badger(t *testing.T) {
	store, err := Open(BackendBadger, "", "")
	assert.NoError(t, err)
	assert.IsType(t, &BadgerMessageStore{}, store)
	assert.NoError(t, store.Close())
}
