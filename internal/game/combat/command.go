package combat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/entity"
	"github.com/davrenn/emberfall/internal/game/event"
	"github.com/davrenn/emberfall/internal/game/player"
	"github.com/davrenn/emberfall/internal/game/rng"
	"github.com/davrenn/emberfall/internal/game/session"
)

// Command is a single player combat action, resolved synchronously under
// the engine lock.
type Command interface {
	// Execute resolves the action and reports whether it succeeded (the
	// attack landed, the flee escaped).
	Execute() bool
}

// AttackCommand resolves one player attack against a target in the same
// room. Each execution rolls its own hit chance, independent of the NPC
// round resolution.
type AttackCommand struct {
	attacker *session.PlayerSession
	// target is the player victim; nil when the victim is an NPC.
	target *session.PlayerSession
	// npcTarget is the NPC victim; nil when the victim is a player.
	npcTarget entity.CombatEntity
	roomID    string

	notifier  *Notifier
	users     UserStore
	death     *PlayerDeathHandler
	bus       *event.Bus
	src       rng.Source
	hitChance float64
	minDamage int
	maxDamage int
	logger    *zap.Logger
}

// Execute rolls the hit, applies clamped damage to the victim, notifies the
// room, and publishes the attack event. A player victim's new health is
// persisted fire-and-forget; lethal outcomes route through the death
// handler.
func (c *AttackCommand) Execute() bool {
	hit := rng.Chance(c.src, c.hitChance)
	damage := 0
	if hit {
		damage = rng.Between(c.src, c.minDamage, c.maxDamage)
	}

	attacker := NewPlayerEntity(c.attacker, c.minDamage, c.maxDamage)

	if c.npcTarget != nil {
		c.executeAgainstNPC(attacker, hit, damage)
	} else {
		c.executeAgainstPlayer(attacker, hit, damage)
	}
	return hit
}

func (c *AttackCommand) executeAgainstNPC(attacker entity.CombatEntity, hit bool, damage int) {
	if hit {
		c.npcTarget.TakeDamage(damage)
		c.npcTarget.AddAggression(c.attacker.Username, damage)
		c.attacker.InCombat = true
	}

	label := c.npcTarget.Name()
	var text string
	if hit {
		text = fmt.Sprintf("%s for %d damage!", attacker.AttackText(label), damage)
	} else {
		text = fmt.Sprintf("%s and misses!", attacker.AttackText(label))
	}
	c.notifier.BroadcastRoomMessage(c.roomID, text, ColorCombat)

	c.bus.Publish(event.Event{
		Topic:  event.TopicAttack,
		RoomID: c.roomID,
		Actor:  c.attacker.Username,
		Target: label,
		Damage: damage,
		Hit:    hit,
	})
}

func (c *AttackCommand) executeAgainstPlayer(attacker entity.CombatEntity, hit bool, damage int) {
	if hit {
		c.target.Health = ClampHealth(c.target.Health, damage)
		c.attacker.InCombat = true
		c.target.InCombat = true

		health := c.target.Health
		username := c.target.Username
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := c.users.UpdateUserStats(ctx, username, player.StatsUpdate{Health: player.IntPtr(health)}); err != nil {
				c.logger.Warn("persisting attack damage failed",
					zap.String("player", username),
					zap.Error(err),
				)
			}
		}()
	}

	c.notifier.NotifyAttackResult(attacker, c.target, c.roomID, hit, damage)

	c.bus.Publish(event.Event{
		Topic:  event.TopicAttack,
		RoomID: c.roomID,
		Actor:  c.attacker.Username,
		Target: c.target.Username,
		Damage: damage,
		Hit:    hit,
	})

	if hit && c.target.Health <= UnconsciousThreshold {
		c.death.HandlePlayerHealth(c.target, c.roomID)
	}
}

// FleeCommand is the player's explicit flee attempt: a flat success chance,
// independent of how long the player has been fleeing. Success breaks the
// player out of combat; either outcome is announced to the room.
type FleeCommand struct {
	actor      *session.PlayerSession
	roomID     string
	notifier   *Notifier
	bus        *event.Bus
	src        rng.Source
	fleeChance float64
}

// Execute rolls the flat escape chance. On success the player leaves
// combat; on failure they stay in it. The room hears the attempt either
// way.
func (c *FleeCommand) Execute() bool {
	if rng.Chance(c.src, c.fleeChance) {
		c.actor.InCombat = false
		c.notifier.BroadcastRoomMessage(c.roomID,
			fmt.Sprintf("%s flees from combat!", c.actor.Username), ColorInfo)
		c.bus.Publish(event.Event{
			Topic:  event.TopicFlee,
			RoomID: c.roomID,
			Actor:  c.actor.Username,
			Hit:    true,
		})
		return true
	}

	c.notifier.BroadcastRoomMessage(c.roomID,
		fmt.Sprintf("%s tries to flee but cannot escape!", c.actor.Username), ColorInfo)
	c.bus.Publish(event.Event{
		Topic:  event.TopicFlee,
		RoomID: c.roomID,
		Actor:  c.actor.Username,
		Hit:    false,
	})
	return false
}

// CommandFactory builds combat commands with the engine collaborators and
// tuning already wired in, so callers supply only the actors.
type CommandFactory struct {
	notifier   *Notifier
	users      UserStore
	death      *PlayerDeathHandler
	bus        *event.Bus
	src        rng.Source
	hitChance  float64
	fleeChance float64
	minDamage  int
	maxDamage  int
	logger     *zap.Logger
}

// NewCommandFactory creates a CommandFactory. minDamage and maxDamage are
// the unarmed player damage range applied to every player attack.
func NewCommandFactory(
	notifier *Notifier,
	users UserStore,
	death *PlayerDeathHandler,
	bus *event.Bus,
	src rng.Source,
	hitChance, fleeChance float64,
	minDamage, maxDamage int,
	logger *zap.Logger,
) *CommandFactory {
	return &CommandFactory{
		notifier:   notifier,
		users:      users,
		death:      death,
		bus:        bus,
		src:        src,
		hitChance:  hitChance,
		fleeChance: fleeChance,
		minDamage:  minDamage,
		maxDamage:  maxDamage,
		logger:     logger,
	}
}

// MinDamage returns the configured unarmed minimum damage.
func (f *CommandFactory) MinDamage() int { return f.minDamage }

// MaxDamage returns the configured unarmed maximum damage.
func (f *CommandFactory) MaxDamage() int { return f.maxDamage }

// AttackPlayer builds an attack by attacker against the player target in
// roomID.
func (f *CommandFactory) AttackPlayer(attacker, target *session.PlayerSession, roomID string) *AttackCommand {
	return &AttackCommand{
		attacker:  attacker,
		target:    target,
		roomID:    roomID,
		notifier:  f.notifier,
		users:     f.users,
		death:     f.death,
		bus:       f.bus,
		src:       f.src,
		hitChance: f.hitChance,
		minDamage: f.minDamage,
		maxDamage: f.maxDamage,
		logger:    f.logger,
	}
}

// AttackNPC builds an attack by attacker against the NPC target in roomID.
func (f *CommandFactory) AttackNPC(attacker *session.PlayerSession, target entity.CombatEntity, roomID string) *AttackCommand {
	return &AttackCommand{
		attacker:  attacker,
		npcTarget: target,
		roomID:    roomID,
		notifier:  f.notifier,
		users:     f.users,
		death:     f.death,
		bus:       f.bus,
		src:       f.src,
		hitChance: f.hitChance,
		minDamage: f.minDamage,
		maxDamage: f.maxDamage,
		logger:    f.logger,
	}
}

// Flee builds a flee attempt for actor in roomID.
func (f *CommandFactory) Flee(actor *session.PlayerSession, roomID string) *FleeCommand {
	return &FleeCommand{
		actor:      actor,
		roomID:     roomID,
		notifier:   f.notifier,
		bus:        f.bus,
		src:        f.src,
		fleeChance: f.fleeChance,
	}
}
