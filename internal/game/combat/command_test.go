package combat_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/combat"
	"github.com/davrenn/emberfall/internal/game/event"
	"github.com/davrenn/emberfall/internal/game/rng"
)

func newFactory(e *engine, src rng.Source) *combat.CommandFactory {
	return combat.NewCommandFactory(
		e.notifier, e.store, e.death, e.bus, src,
		combat.DefaultHitChance, combat.DefaultFleeChance,
		2, 6,
		zap.NewNop(),
	)
}

func TestAttackCommandHitsPlayer(t *testing.T) {
	e := newEngine(t)
	// First draw decides the hit, the rest the damage roll.
	src := &seqSrc{floats: []float64{0}, ints: []int{3}}
	factory := newFactory(e, src)

	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:cave", 100, 100)

	hit := factory.AttackPlayer(alice, bob, "town:cave").Execute()

	require.True(t, hit)
	assert.Equal(t, 95, bob.Health)
	assert.True(t, alice.InCombat)
	assert.True(t, bob.InCombat)

	require.Eventually(t, func() bool {
		return e.store.statsUpdateCount() >= 1
	}, time.Second, 5*time.Millisecond)
	upd, ok := e.store.lastStatsUpdate()
	require.True(t, ok)
	require.NotNil(t, upd.Health)
	assert.Equal(t, 95, *upd.Health)
}

func TestAttackCommandMissesPlayer(t *testing.T) {
	e := newEngine(t)
	factory := newFactory(e, fixedSrc{f: 0.9})

	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:cave", 100, 100)

	hit := factory.AttackPlayer(alice, bob, "town:cave").Execute()

	assert.False(t, hit)
	assert.Equal(t, 100, bob.Health)
	assert.False(t, alice.InCombat)

	msgs := drainOutbox(bob)
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1].Text, "misses")
}

func TestAttackCommandLethalBlowKillsPlayer(t *testing.T) {
	e := newEngine(t)
	src := &seqSrc{floats: []float64{0}, ints: []int{4}}
	factory := newFactory(e, src)

	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:cave", -8, 100)

	factory.AttackPlayer(alice, bob, "town:cave").Execute()

	assert.Equal(t, 100, bob.Health, "lethal blow respawns the victim at full health")
	assert.Equal(t, "town:square", bob.RoomID)
}

func TestAttackCommandHitsNPC(t *testing.T) {
	e := newEngine(t)
	src := &seqSrc{floats: []float64{0}, ints: []int{2}}
	factory := newFactory(e, src)

	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	goblin := e.spawnGoblin(t, "town:cave", 10)

	var got []event.Event
	e.bus.Subscribe(event.TopicAttack, func(ev event.Event) { got = append(got, ev) })

	hit := factory.AttackNPC(alice, goblin, "town:cave").Execute()

	require.True(t, hit)
	assert.Equal(t, 26, goblin.Health())
	assert.True(t, goblin.HasAggression("alice"))
	assert.Equal(t, 4, goblin.AggressionDamage("alice"))
	assert.True(t, alice.InCombat)

	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Actor)
	assert.Equal(t, "a goblin", got[0].Target)
	assert.Equal(t, 4, got[0].Damage)
}

func TestFleeCommandSuccessBreaksCombat(t *testing.T) {
	e := newEngine(t)
	// A 0.1 draw beats the flat 30% escape chance.
	factory := newFactory(e, fixedSrc{f: 0.1})

	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	bob := e.addPlayer(t, "bob", "town:cave", 100, 100)
	alice.InCombat = true

	escaped := factory.Flee(alice, "town:cave").Execute()

	assert.True(t, escaped)
	assert.False(t, alice.InCombat)

	var announced bool
	for _, m := range drainOutbox(bob) {
		if strings.Contains(m.Text, "flees from combat") {
			announced = true
		}
	}
	assert.True(t, announced)
}

func TestFleeCommandFailureStaysInCombat(t *testing.T) {
	e := newEngine(t)
	// A 0.5 draw loses to the flat 30% escape chance.
	factory := newFactory(e, fixedSrc{f: 0.5})

	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)
	alice.InCombat = true

	escaped := factory.Flee(alice, "town:cave").Execute()

	assert.False(t, escaped)
	assert.True(t, alice.InCombat)

	var announced bool
	for _, m := range drainOutbox(alice) {
		if strings.Contains(m.Text, "cannot escape") {
			announced = true
		}
	}
	assert.True(t, announced)
}

func TestFleeCommandPublishesOutcome(t *testing.T) {
	e := newEngine(t)
	factory := newFactory(e, fixedSrc{f: 0.1})

	alice := e.addPlayer(t, "alice", "town:cave", 100, 100)

	var got []event.Event
	e.bus.Subscribe(event.TopicFlee, func(ev event.Event) { got = append(got, ev) })

	factory.Flee(alice, "town:cave").Execute()

	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Actor)
	assert.True(t, got[0].Hit)
}
