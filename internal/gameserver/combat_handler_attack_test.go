package gameserver_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davrenn/emberfall/internal/game/combat"
)

func TestAttackNPCRegistersCombat(t *testing.T) {
	src := &scriptedSrc{floats: []float64{0}, ints: []int{3}}
	r := newRig(t, src)

	alice := r.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := r.addPlayer(t, "bob", "town:cave", 100, 100)
	goblin := r.spawnGoblin(t, "town:cave", 10, 30)

	hit, err := r.handler.Attack("alice", "a goblin")
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, 25, goblin.Health())
	assert.True(t, goblin.HasAggression("alice"))
	assert.True(t, alice.InCombat)
	assert.True(t, r.tracker.IsEntityInCombat("town:cave", "a goblin"))
	assert.Equal(t, []string{"alice"}, r.tracker.Targeters(combat.EntityID("town:cave", "a goblin")))

	var sawStart bool
	for _, m := range drainOutbox(bob) {
		if strings.Contains(m.Text, "moves to attack") {
			sawStart = true
		}
	}
	assert.True(t, sawStart)
}

func TestAttackNPCByTemplateID(t *testing.T) {
	src := &scriptedSrc{floats: []float64{0}, ints: []int{0}}
	r := newRig(t, src)

	r.addPlayer(t, "alice", "town:cave", 100, 100)
	goblin := r.spawnGoblin(t, "town:cave", 10, 30)

	_, err := r.handler.Attack("alice", "goblin")
	require.NoError(t, err)
	assert.Equal(t, 28, goblin.Health())
}

func TestAttackRejectedInSafeRoom(t *testing.T) {
	r := newRig(t, &scriptedSrc{})

	r.addPlayer(t, "alice", "town:square", 100, 100)
	r.spawnGoblin(t, "town:square", 10, 30)

	_, err := r.handler.Attack("alice", "a goblin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prevents violence")
}

func TestAttackRejectedWhileUnconscious(t *testing.T) {
	r := newRig(t, &scriptedSrc{})

	alice := r.addPlayer(t, "alice", "town:cave", -3, 100)
	alice.Unconscious = true
	r.spawnGoblin(t, "town:cave", 10, 30)

	_, err := r.handler.Attack("alice", "a goblin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unconscious")
}

func TestAttackUnknownTarget(t *testing.T) {
	r := newRig(t, &scriptedSrc{})
	r.addPlayer(t, "alice", "town:cave", 100, 100)

	_, err := r.handler.Attack("alice", "a dragon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "don't see")
}

func TestAttackSelfRejected(t *testing.T) {
	r := newRig(t, &scriptedSrc{})
	r.addPlayer(t, "alice", "town:cave", 100, 100)

	_, err := r.handler.Attack("alice", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yourself")
}

func TestAttackPlayerRollsNormally(t *testing.T) {
	src := &scriptedSrc{floats: []float64{0}, ints: []int{2}}
	r := newRig(t, src)

	r.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := r.addPlayer(t, "bob", "town:cave", 100, 100)

	hit, err := r.handler.Attack("alice", "bob")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 96, bob.Health)
}

func TestAttackUnconsciousTargetAlwaysHits(t *testing.T) {
	// A 0.9 draw would miss a normal target; against an unconscious one
	// there is no hit roll to fail.
	src := &scriptedSrc{floats: []float64{0.9}, ints: []int{0}}
	r := newRig(t, src)

	r.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := r.addPlayer(t, "bob", "town:cave", -2, 100)
	bob.Unconscious = true

	hit, err := r.handler.Attack("alice", "bob")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, -4, bob.Health, "minimum damage lands without a roll")
}

func TestKillingNPCReleasesAttackers(t *testing.T) {
	src := &scriptedSrc{floats: []float64{0, 0}, ints: []int{4, 4}}
	r := newRig(t, src)

	alice := r.addPlayer(t, "alice", "town:cave", 100, 100)
	goblin := r.spawnGoblin(t, "town:cave", 10, 10)

	hit, err := r.handler.Attack("alice", "a goblin")
	require.NoError(t, err)
	require.True(t, hit)
	require.True(t, alice.InCombat)

	// Second blow (6 damage each) finishes the 10 hp goblin.
	_, err = r.handler.Attack("alice", "a goblin")
	require.NoError(t, err)

	assert.False(t, goblin.IsAlive())
	_, found := r.entities.Get(goblin.ID)
	assert.False(t, found, "corpse despawns")
	assert.False(t, alice.InCombat)
	assert.False(t, r.tracker.IsEntityInCombat("town:cave", "a goblin"))
	assert.Empty(t, r.tracker.Targeters(combat.EntityID("town:cave", "a goblin")))

	var slain bool
	for _, m := range drainOutbox(alice) {
		if strings.Contains(m.Text, "dead") {
			slain = true
		}
	}
	assert.True(t, slain)
}

func TestAttackDeadNPCRejected(t *testing.T) {
	r := newRig(t, &scriptedSrc{})
	r.addPlayer(t, "alice", "town:cave", 100, 100)
	goblin := r.spawnGoblin(t, "town:cave", 10, 30)
	goblin.TakeDamage(1000)

	_, err := r.handler.Attack("alice", "a goblin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already dead")
}
