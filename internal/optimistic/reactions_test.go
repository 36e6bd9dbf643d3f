package optimistic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReactions_LikeUnlikeRestoresCount(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", 7, "alice", false)

	n, liked := r.Toggle("p1", "alice")
	assert.Equal(t, 8, n)
	assert.True(t, liked)

	n, liked = r.Toggle("p1", "alice")
	assert.Equal(t, 7, n)
	assert.False(t, liked)
}

func TestReactions_NeverNegative(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", 0, "alice", true)

	n, liked := r.Toggle("p1", "alice")

	assert.Equal(t, 0, n)
	assert.False(t, liked)
}

func TestReactions_SeedClampsNegative(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", -3, "alice", false)
	assert.Equal(t, 0, r.Count("p1"))
}

func TestReactions_EchoOfLocalToggleIsIgnored(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", 2, "alice", false)
	r.Toggle("p1", "alice")

	n, res := r.ApplyRemote("p1", "alice", true)

	assert.Equal(t, RemoteDuplicate, res)
	assert.Equal(t, 3, n)
}

func TestReactions_UnseenActorLeavesCount(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", 2, "alice", true)

	// bob's like is already part of the seeded count
	n, res := r.ApplyRemote("p1", "bob", true)
	assert.Equal(t, RemoteUnknown, res)
	assert.Equal(t, 2, n)
	assert.True(t, r.Liked("p1", "bob"))

	r.Resync("p1", 2)
	assert.Equal(t, 2, r.Count("p1"))
}

func TestReactions_RemoteRedeliveryCountsOnce(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", 2, "alice", false)

	_, res := r.ApplyRemote("p1", "bob", true)
	assert.Equal(t, RemoteUnknown, res)
	r.Resync("p1", 3)

	n, res := r.ApplyRemote("p1", "bob", true)
	assert.Equal(t, RemoteDuplicate, res)
	assert.Equal(t, 3, n)

	n, res = r.ApplyRemote("p1", "bob", false)
	assert.Equal(t, RemoteApplied, res)
	assert.Equal(t, 2, n)

	n, res = r.ApplyRemote("p1", "bob", false)
	assert.Equal(t, RemoteDuplicate, res)
	assert.Equal(t, 2, n)
}

func TestReactions_ResyncClampsNegative(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", 3, "alice", true)
	r.Resync("p1", -1)

	assert.Equal(t, 0, r.Count("p1"))
	assert.True(t, r.Liked("p1", "alice"))
}

func TestReactions_SetOnlyAdjustsOnChange(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", 1, "alice", true)

	n, _ := r.Set("p1", "alice", true)
	assert.Equal(t, 1, n)

	n, liked := r.Set("p1", "alice", false)
	assert.Equal(t, 0, n)
	assert.False(t, liked)
	assert.False(t, r.Liked("p1", "alice"))
}

func TestReactions_Forget(t *testing.T) {
	r := NewReactions()
	r.Seed("p1", 4, "alice", true)
	r.Forget("p1")

	assert.Equal(t, 0, r.Count("p1"))
	assert.False(t, r.Liked("p1", "alice"))
}
