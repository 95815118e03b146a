package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationIDIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"b7e1", "a0f3"},
		{"same", "same"},
		{"9c8f3f5e-52c4-4f0e-9a8e-0b6f2b0d1e11", "1a2b3c4d-0000-4000-8000-000000000000"},
	}
	for _, p := range pairs {
		assert.Equal(t, ConversationID(p[0], p[1]), ConversationID(p[1], p[0]))
	}
	assert.Equal(t, "u1_u2", ConversationID("u2", "u1"))
}

func TestParticipants(t *testing.T) {
	a, b, err := Participants(ConversationID("u2", "u1"))
	require.NoError(t, err)
	assert.Equal(t, "u1", a)
	assert.Equal(t, "u2", b)

	for _, bad := range []string{"", "u1", "_u1", "u1_", "u2_u1", "a_b_c"} {
		_, _, err := Participants(bad)
		assert.ErrorIs(t, err, ErrMalformedConversationID, bad)
	}
}

func TestInvolvesAndPeer(t *testing.T) {
	id := ConversationID("alice", "bob")
	assert.True(t, Involves(id, "alice"))
	assert.True(t, Involves(id, "bob"))
	assert.False(t, Involves(id, "carol"))

	m := Message{SenderID: "alice", ReceiverID: "bob"}
	assert.Equal(t, "bob", m.Peer("alice"))
	assert.Equal(t, "alice", m.Peer("bob"))
}
