package chathub_test

import (
	"testing"
	"time"

	"stringchat/backend/internal/chathub"
	"stringchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKeyOrderIndependent(t *testing.T) {
	assert.Equal(t, chathub.PairKey("a", "b"), chathub.PairKey("b", "a"))
	assert.Equal(t, chathub.PairKey("zzz", "aaa"), chathub.PairKey("aaa", "zzz"))
	assert.NotEqual(t, chathub.PairKey("a", "b"), chathub.PairKey("a", "c"))
}

func TestSessionGetOrCreateIsStable(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)

	key1 := r.GetOrCreate("a", "b")
	key2 := r.GetOrCreate("b", "a")

	assert.Equal(t, key1, key2)
	assert.Equal(t, 1, r.Len())
}

func TestSessionTranscriptAppend(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)

	ok := r.AppendMessage("a", "b", models.Message{ID: "1", From: "a", Text: "hi"})
	assert.True(t, ok)

	sess, found := r.Snapshot("b", "a")
	require.True(t, found)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "hi", sess.Messages[0].Text)
}

func TestSessionVoteConsensusSave(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)
	r.AppendMessage("a", "b", models.Message{ID: "1", From: "a", Text: "hello"})

	out := r.RecordVote("a", "b", models.Vote{Save: true})
	assert.Equal(t, chathub.VoteWaiting, out.Status)

	out = r.RecordVote("b", "a", models.Vote{Save: true})
	require.Equal(t, chathub.VoteResolved, out.Status)
	assert.True(t, out.Result.Saved)
	assert.Len(t, out.Result.Messages, 1)
	assert.Len(t, out.Result.Votes, 2)
	assert.Equal(t, chathub.PairKey("a", "b"), out.Result.SessionKey)
	assert.ElementsMatch(t, []string{"a", "b"}, out.Voters)
}

func TestSessionVoteConsensusDiscard(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)
	r.AppendMessage("a", "b", models.Message{ID: "1", From: "a", Text: "hello"})

	r.RecordVote("a", "b", models.Vote{Save: true})
	out := r.RecordVote("b", "a", models.Vote{Save: false})

	require.Equal(t, chathub.VoteResolved, out.Status)
	assert.False(t, out.Result.Saved)
	assert.Empty(t, out.Result.Messages, "a discarded session must not leak the transcript")
	assert.Empty(t, out.Result.Votes)
	assert.Empty(t, out.Result.SessionKey)
}

func TestSessionVoteLastWriteWinsBeforeResolution(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)

	r.RecordVote("a", "b", models.Vote{Save: false})
	r.RecordVote("a", "b", models.Vote{Save: true})
	out := r.RecordVote("b", "a", models.Vote{Save: true})

	require.Equal(t, chathub.VoteResolved, out.Status)
	assert.True(t, out.Result.Saved)
}

func TestSessionResolvesExactlyOnce(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)

	r.RecordVote("a", "b", models.Vote{Save: true})
	first := r.RecordVote("b", "a", models.Vote{Save: true})
	again := r.RecordVote("b", "a", models.Vote{Save: false})

	assert.Equal(t, chathub.VoteResolved, first.Status)
	assert.Equal(t, chathub.VoteIgnored, again.Status, "a vote after resolution is a no-op")

	// Votes stayed immutable.
	sess, found := r.Snapshot("a", "b")
	require.True(t, found)
	assert.True(t, sess.Votes["b"].Save)
	assert.Len(t, sess.Votes, 2)
}

func TestSessionTranscriptImmutableAfterResolution(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)

	r.RecordVote("a", "b", models.Vote{Save: true})
	r.RecordVote("b", "a", models.Vote{Save: true})

	ok := r.AppendMessage("a", "b", models.Message{ID: "late", From: "a", Text: "late"})
	assert.False(t, ok)

	sess, _ := r.Snapshot("a", "b")
	assert.Empty(t, sess.Messages)
}

func TestSessionVoteMapNeverExceedsTwo(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)

	r.RecordVote("a", "b", models.Vote{Save: true})
	r.RecordVote("b", "a", models.Vote{Save: true})
	// A third party targeting the same pair key resolves to a different
	// session key, and the resolved one ignores further votes.
	r.RecordVote("b", "a", models.Vote{Save: false})

	sess, found := r.Snapshot("a", "b")
	require.True(t, found)
	assert.LessOrEqual(t, len(sess.Votes), 2)
}

func TestSessionPurgedAfterGrace(t *testing.T) {
	r := chathub.NewSessionRegistry(50 * time.Millisecond)

	r.RecordVote("a", "b", models.Vote{Save: true})
	r.RecordVote("b", "a", models.Vote{Save: true})

	// Still observable inside the grace window for late duplicate reads.
	assert.True(t, r.Has("a", "b"))

	assert.Eventually(t, func() bool { return !r.Has("a", "b") },
		time.Second, 10*time.Millisecond, "resolved session should be purged after the grace delay")
}

func TestSessionDeleteCancelsPurgeTimer(t *testing.T) {
	r := chathub.NewSessionRegistry(50 * time.Millisecond)

	r.RecordVote("a", "b", models.Vote{Save: true})
	r.RecordVote("b", "a", models.Vote{Save: true})
	r.Delete("a", "b")

	assert.False(t, r.Has("a", "b"))
	time.Sleep(100 * time.Millisecond) // timer firing later must not panic
	assert.False(t, r.Has("a", "b"))
}

func TestSessionDeleteAllFor(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)

	r.GetOrCreate("a", "b")
	r.GetOrCreate("a", "c")
	r.GetOrCreate("x", "y")

	r.DeleteAllFor("a")

	assert.False(t, r.Has("a", "b"))
	assert.False(t, r.Has("a", "c"))
	assert.True(t, r.Has("x", "y"), "unrelated sessions must survive")
	assert.Equal(t, 1, r.Len())
}

func TestSessionDeleteAllForCancelsPurgeTimers(t *testing.T) {
	r := chathub.NewSessionRegistry(50 * time.Millisecond)

	r.RecordVote("a", "b", models.Vote{Save: true})
	r.RecordVote("b", "a", models.Vote{Save: true})
	r.DeleteAllFor("b")

	assert.Equal(t, 0, r.Len())
	time.Sleep(100 * time.Millisecond) // timer firing later must not panic
	assert.Equal(t, 0, r.Len())
}

func TestSessionDeleteImmediate(t *testing.T) {
	r := chathub.NewSessionRegistry(time.Minute)

	r.GetOrCreate("a", "b")
	r.Delete("b", "a")

	assert.False(t, r.Has("a", "b"))
	assert.Equal(t, 0, r.Len())
}
