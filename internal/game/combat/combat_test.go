package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/davrenn/emberfall/internal/game/combat"
	"github.com/davrenn/emberfall/internal/game/session"
)

func TestClampHealth(t *testing.T) {
	assert.Equal(t, 90, combat.ClampHealth(100, 10))
	assert.Equal(t, 0, combat.ClampHealth(10, 10))
	assert.Equal(t, -10, combat.ClampHealth(5, 15))
	assert.Equal(t, -10, combat.ClampHealth(5, 500), "damage clamps at the floor")
	assert.Equal(t, -10, combat.ClampHealth(-10, 1), "floor is absorbing")
}

func TestClampHealthNeverBelowFloorProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		health := rapid.IntRange(combat.HealthFloor, 1000).Draw(t, "health")
		damage := rapid.IntRange(0, 2000).Draw(t, "damage")
		got := combat.ClampHealth(health, damage)
		assert.GreaterOrEqual(t, got, combat.HealthFloor)
		assert.LessOrEqual(t, got, health)
	})
}

func TestHealthBandsPartitionEveryValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		health := rapid.IntRange(-50, 200).Draw(t, "health")
		dead := combat.IsDeadHealth(health)
		unconscious := combat.IsUnconsciousHealth(health)
		normal := health > 0

		states := 0
		for _, s := range []bool{dead, unconscious, normal} {
			if s {
				states++
			}
		}
		assert.Equal(t, 1, states, "health %d must be in exactly one band", health)
	})
}

func TestHealthBandBoundaries(t *testing.T) {
	assert.True(t, combat.IsDeadHealth(-10))
	assert.True(t, combat.IsDeadHealth(-11))
	assert.False(t, combat.IsDeadHealth(-9))

	assert.True(t, combat.IsUnconsciousHealth(0))
	assert.True(t, combat.IsUnconsciousHealth(-9))
	assert.False(t, combat.IsUnconsciousHealth(-10))
	assert.False(t, combat.IsUnconsciousHealth(1))
}

func TestPlayerEntityReflectsSession(t *testing.T) {
	sess := &session.PlayerSession{
		Username:  "alice",
		Health:    40,
		MaxHealth: 100,
	}
	ent := combat.NewPlayerEntity(sess, 2, 6)

	assert.Equal(t, "alice", ent.Name())
	assert.Equal(t, 40, ent.Health())
	assert.Equal(t, 100, ent.MaxHealth())
	assert.True(t, ent.IsAlive())
	assert.False(t, ent.IsHostile())

	ent.TakeDamage(45)
	assert.Equal(t, -5, sess.Health)
	assert.False(t, ent.IsAlive())

	ent.TakeDamage(500)
	assert.Equal(t, -10, sess.Health)
}

func TestPlayerEntityDamageRange(t *testing.T) {
	sess := &session.PlayerSession{Username: "alice", Health: 100, MaxHealth: 100}
	ent := combat.NewPlayerEntity(sess, 2, 6)

	assert.Equal(t, 2, ent.AttackDamage(fixedSrc{n: 0}))
	assert.Equal(t, 6, ent.AttackDamage(fixedSrc{n: 4}))
}

func TestPlayerEntityIgnoresAggression(t *testing.T) {
	sess := &session.PlayerSession{Username: "alice", Health: 100, MaxHealth: 100}
	ent := combat.NewPlayerEntity(sess, 2, 6)

	ent.AddAggression("goblin", 5)
	assert.False(t, ent.HasAggression("goblin"))
	assert.Empty(t, ent.Aggressors())
}
