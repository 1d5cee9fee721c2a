package chathub_test

import (
	"testing"

	"stringchat/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
)

func TestMatcherFirstJoinerWaits(t *testing.T) {
	m := chathub.NewMatcherService()

	partner, matched := m.Join("user_A", nil)

	assert.False(t, matched)
	assert.Empty(t, partner)
	assert.Equal(t, 1, m.QueueLen())
}

func TestMatcherSecondJoinerPairsImmediately(t *testing.T) {
	m := chathub.NewMatcherService()

	m.Join("user_A", nil)
	partner, matched := m.Join("user_B", nil)

	assert.True(t, matched)
	assert.Equal(t, "user_A", partner)
	assert.Equal(t, 0, m.QueueLen(), "queue should be empty after pairing")

	// The pairing is symmetric.
	p, ok := m.Partner("user_A")
	assert.True(t, ok)
	assert.Equal(t, "user_B", p)
	p, ok = m.Partner("user_B")
	assert.True(t, ok)
	assert.Equal(t, "user_A", p)
}

func TestMatcherFIFOOrder(t *testing.T) {
	m := chathub.NewMatcherService()

	m.Join("first", nil)
	m.Join("second", nil) // pairs with "first"
	m.Join("third", nil)
	m.Join("fourth", nil) // pairs with "third"

	p, _ := m.Partner("second")
	assert.Equal(t, "first", p)
	p, _ = m.Partner("fourth")
	assert.Equal(t, "third", p)
}

func TestMatcherOldestEntryWins(t *testing.T) {
	m := chathub.NewMatcherService()

	m.Join("oldest", nil)
	// "oldest" leaves and a newer participant queues before re-join.
	m.Leave("oldest")
	m.Join("newer", nil)
	m.Join("oldest", nil)

	partner, matched := m.Join("joiner", nil)
	assert.True(t, matched)
	assert.Equal(t, "newer", partner)
}

func TestMatcherRejoinKeepsSingleEntry(t *testing.T) {
	m := chathub.NewMatcherService()

	m.Join("user_A", nil)
	_, matched := m.Join("user_A", nil)

	assert.False(t, matched, "re-join must not pair a participant with themselves")
	assert.Equal(t, 1, m.QueueLen())
}

func TestMatcherLeave(t *testing.T) {
	m := chathub.NewMatcherService()

	m.Join("user_A", nil)
	m.Leave("user_A")
	assert.Equal(t, 0, m.QueueLen())

	// Leaving when absent is a no-op.
	m.Leave("user_A")
	assert.Equal(t, 0, m.QueueLen())
}

func TestMatcherRemovePairClearsBothSides(t *testing.T) {
	m := chathub.NewMatcherService()

	m.Join("user_A", nil)
	m.Join("user_B", nil)
	m.RemovePair("user_A")

	_, ok := m.Partner("user_A")
	assert.False(t, ok)
	_, ok = m.Partner("user_B")
	assert.False(t, ok)
}

func TestMatcherJoinDropsStalePairing(t *testing.T) {
	m := chathub.NewMatcherService()

	m.Join("user_A", nil)
	m.Join("user_B", nil)

	// A re-enters the queue without an explicit next.
	_, matched := m.Join("user_A", nil)
	assert.False(t, matched)

	_, ok := m.Partner("user_B")
	assert.False(t, ok, "stale pairing must be gone once A re-queues")
}
