package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davrenn/emberfall/internal/game/combat"
	"github.com/davrenn/emberfall/internal/game/world"
)

func TestNotifyAttackResultSecondAndThirdPerson(t *testing.T) {
	e := newEngine(t)
	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:cave", 100, 100)
	goblin := e.spawnGoblin(t, "town:cave", 10)

	e.notifier.NotifyAttackResult(goblin, alice, "town:cave", true, 10)

	aliceMsgs := drainOutbox(alice)
	require.Len(t, aliceMsgs, 1)
	assert.Contains(t, aliceMsgs[0].Text, "at you for 10 damage!")
	assert.Equal(t, combat.ColorCombat, aliceMsgs[0].Color)

	bobMsgs := drainOutbox(bob)
	require.Len(t, bobMsgs, 1)
	assert.Contains(t, bobMsgs[0].Text, "at alice for 10 damage!")
}

func TestNotifyAttackResultMiss(t *testing.T) {
	e := newEngine(t)
	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	goblin := e.spawnGoblin(t, "town:cave", 10)

	e.notifier.NotifyAttackResult(goblin, alice, "town:cave", false, 0)

	msgs := drainOutbox(alice)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "and misses!")
}

func TestNotifyAttackResultNilTargetIsNoOp(t *testing.T) {
	e := newEngine(t)
	goblin := e.spawnGoblin(t, "town:cave", 10)
	e.notifier.NotifyAttackResult(goblin, nil, "town:cave", true, 10)
}

func TestNotifyPlayerDeathExcludesVictimFromBroadcast(t *testing.T) {
	e := newEngine(t)
	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:cave", 100, 100)

	e.notifier.NotifyPlayerDeath(alice, "town:cave")

	aliceMsgs := drainOutbox(alice)
	require.Len(t, aliceMsgs, 1)
	assert.Contains(t, aliceMsgs[0].Text, "Everything goes dark")
	assert.Equal(t, combat.ColorDeath, aliceMsgs[0].Color)

	bobMsgs := drainOutbox(bob)
	require.Len(t, bobMsgs, 1)
	assert.Contains(t, bobMsgs[0].Text, "alice collapses")
}

func TestBroadcastRoomMessageHonorsExclusions(t *testing.T) {
	e := newEngine(t)
	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:cave", 100, 100)
	carol := e.addPlayer(t, "carol", "town:square", 100, 100)

	e.notifier.BroadcastRoomMessage("town:cave", "The ground trembles.", combat.ColorInfo, "Alice")

	assert.Empty(t, drainOutbox(alice), "exclusion is case-insensitive")
	require.Len(t, drainOutbox(bob), 1)
	assert.Empty(t, drainOutbox(carol), "other rooms hear nothing")
}

func TestBroadcastToUnknownRoomIsNoOp(t *testing.T) {
	e := newEngine(t)
	e.notifier.BroadcastRoomMessage("nowhere", "hello", combat.ColorInfo)
}

func TestBroadcastSkipsOccupantsWithoutSession(t *testing.T) {
	e := newEngine(t)
	bob := e.addPlayer(t, "bob", "town:cave", 100, 100)
	// ghost is on the roster but has no live session.
	require.NoError(t, e.worlds.AddPlayerToRoom("town:cave", "ghost"))

	e.notifier.BroadcastRoomMessage("town:cave", "hello", combat.ColorInfo)
	require.Len(t, drainOutbox(bob), 1)
}

func TestNotifyPlayerTeleportedDescribesDestination(t *testing.T) {
	e := newEngine(t)
	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:square", 100, 100)

	e.worlds.RemovePlayerFromRoom("town:cave", "alice")
	require.NoError(t, e.worlds.AddPlayerToRoom("town:square", "alice"))
	alice.RoomID = "town:square"

	square, ok := e.worlds.GetRoom("town:square")
	require.True(t, ok)
	e.notifier.NotifyPlayerTeleported(alice, square)

	aliceMsgs := drainOutbox(alice)
	require.Len(t, aliceMsgs, 2)
	assert.Contains(t, aliceMsgs[0].Text, "strange force")
	assert.Contains(t, aliceMsgs[1].Text, "The Town Square")
	assert.Contains(t, aliceMsgs[1].Text, "Also here: bob")
	assert.NotContains(t, aliceMsgs[1].Text, "alice")

	bobMsgs := drainOutbox(bob)
	require.Len(t, bobMsgs, 1)
	assert.Contains(t, bobMsgs[0].Text, "alice appears")
}

func TestDescribeRoomListsExits(t *testing.T) {
	e := newEngine(t)
	room := &world.Room{
		ID:          "test",
		Title:       "Test Chamber",
		Description: "Bare stone walls.",
		Exits: []world.Exit{
			{Direction: "north", TargetRoom: "a"},
			{Direction: "east", TargetRoom: "b"},
		},
	}

	desc := e.notifier.DescribeRoom(room, "")
	assert.Contains(t, desc, "Test Chamber")
	assert.Contains(t, desc, "Bare stone walls.")
	assert.Contains(t, desc, "Exits: north, east")
	assert.NotContains(t, desc, "Also here")
}

func TestBroadcastCombatStart(t *testing.T) {
	e := newEngine(t)
	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:cave", 100, 100)

	e.notifier.BroadcastCombatStart(alice, "a goblin")

	assert.Empty(t, drainOutbox(alice))
	msgs := drainOutbox(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice moves to attack a goblin!", msgs[0].Text)
}
