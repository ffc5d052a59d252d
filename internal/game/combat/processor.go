package combat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/entity"
	"github.com/davrenn/emberfall/internal/game/event"
	"github.com/davrenn/emberfall/internal/game/player"
	"github.com/davrenn/emberfall/internal/game/rng"
	"github.com/davrenn/emberfall/internal/game/session"
	"github.com/davrenn/emberfall/internal/game/world"
)

// Processor is the combat orchestrator: it advances the global round
// counter, scans all rooms for hostile NPCs that should initiate attacks,
// resolves NPC→player attacks, and delegates lethal outcomes to the
// PlayerDeathHandler.
//
// mu serialises the tick path against command-layer calls so a room's
// resolution pass always runs against a consistent snapshot, preserving the
// at-most-one-attack-per-entity-per-round invariant on any runtime.
type Processor struct {
	mu sync.Mutex
	// currentRound is the process-wide round counter, advanced exactly once
	// per tick by ProcessCombatRound.
	currentRound int64
	// lastAttackRound: entityID → round the entity last attacked in.
	// Cleared every round; holds no cross-round state.
	lastAttackRound map[string]int64

	tracker   *EntityTracker
	notifier  *Notifier
	sessions  *session.Manager
	worlds    *world.Manager
	users     UserStore
	death     *PlayerDeathHandler
	bus       *event.Bus
	src       rng.Source
	hitChance float64
	logger    *zap.Logger
}

// NewProcessor creates a Processor with the round counter at zero.
//
// Precondition: all pointer arguments must be non-nil; hitChance must be in
// (0, 1].
func NewProcessor(
	tracker *EntityTracker,
	notifier *Notifier,
	sessions *session.Manager,
	worlds *world.Manager,
	users UserStore,
	death *PlayerDeathHandler,
	bus *event.Bus,
	src rng.Source,
	hitChance float64,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		lastAttackRound: make(map[string]int64),
		tracker:         tracker,
		notifier:        notifier,
		sessions:        sessions,
		worlds:          worlds,
		users:           users,
		death:           death,
		bus:             bus,
		src:             src,
		hitChance:       hitChance,
		logger:          logger,
	}
}

// CurrentRound returns the current round number.
func (p *Processor) CurrentRound() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentRound
}

// ProcessCombatRound advances the round counter and clears the per-round
// attack bookkeeping. Must be called exactly once per tick, before
// ProcessRoomCombat.
func (p *Processor) ProcessCombatRound() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentRound++
	p.lastAttackRound = make(map[string]int64)
}

// ProcessRoomCombat runs the scan-and-act algorithm once: the scan phase
// registers hostile NPCs and seeds aggression, the resolution phase resolves
// one attack per registered entity. Calling it again within the same round
// is an idempotent no-op for entities that already attacked.
//
// The pass runs to completion synchronously under the engine lock; any
// persistence it triggers is fire-and-forget.
func (p *Processor) ProcessRoomCombat() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanRoomsForHostileNPCs()
	p.resolveRegisteredCombat()
}

// ResetEntityAttack clears entityID's attacked-this-round mark so it can
// immediately re-target (e.g. after its target disconnects) instead of
// waiting out the round.
func (p *Processor) ResetEntityAttack(entityID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.lastAttackRound, entityID)
}

// scanRoomsForHostileNPCs registers every hostile NPC in a populated,
// non-safe room as in-combat and makes each present player a zero-damage
// aggressor ("the NPC notices you"). Caller must hold p.mu.
func (p *Processor) scanRoomsForHostileNPCs() {
	for _, room := range p.worlds.AllRooms() {
		if room.IsSafe() || len(room.Players) == 0 {
			continue
		}
		npcs := p.tracker.entities.InstancesInRoom(room.ID)
		if len(npcs) == 0 {
			continue
		}
		for _, npc := range npcs {
			if !npc.IsHostile() || !npc.IsAlive() {
				continue
			}
			p.tracker.AddEntityToCombat(room.ID, npc.Name())
			for _, username := range room.Players {
				if !npc.HasAggression(username) {
					npc.AddAggression(username, 0)
				}
			}
		}
	}
}

// resolveRegisteredCombat resolves one attack for each registered entity in
// each room with players. Caller must hold p.mu.
func (p *Processor) resolveRegisteredCombat() {
	for _, roomID := range p.tracker.CombatRoomIDs() {
		room, ok := p.worlds.GetRoom(roomID)
		if !ok {
			p.logger.Warn("combat registered for unknown room, skipping",
				zap.String("room", roomID))
			continue
		}
		if room.IsSafe() || len(room.Players) == 0 {
			continue
		}
		for _, entityName := range p.tracker.CombatEntitiesInRoom(roomID) {
			p.resolveEntity(room, entityName)
		}
	}
}

// resolveEntity runs the per-entity resolution step: skip dead or
// already-acted entities, pick a target (aggressors first, then any
// occupant), attack, and mark the entity as having acted this round.
func (p *Processor) resolveEntity(room *world.Room, entityName string) {
	id := EntityID(room.ID, entityName)

	ent := p.tracker.SharedEntity(room.ID, entityName)
	if !ent.IsAlive() {
		p.tracker.CleanupDeadEntity(room.ID, entityName)
		p.tracker.RemoveEntityFromCombat(room.ID, entityName)
		if npc, ok := ent.(*entity.NPC); ok {
			if err := p.tracker.entities.Remove(npc.ID); err != nil {
				p.logger.Debug("despawning dead entity failed",
					zap.String("entity", npc.ID),
					zap.Error(err),
				)
			}
		}
		return
	}
	if p.lastAttackRound[id] == p.currentRound {
		return
	}
	if !ent.IsHostile() || ent.IsPassive() {
		return
	}

	target := p.pickTarget(room, ent)
	if target == "" {
		return
	}

	p.processNPCAttack(ent, target, room.ID)
	p.lastAttackRound[id] = p.currentRound
}

// pickTarget selects the entity's victim: uniformly at random among its
// aggressors present in the room; failing that, uniformly at random from
// the room roster (recording zero-damage aggression). Aggressors get
// priority so combat feels persistent; a fresh NPC still engages rather
// than standing idle.
//
// Postcondition: Returns "" when the room has no eligible players.
func (p *Processor) pickTarget(room *world.Room, ent entity.CombatEntity) string {
	var present []string
	for _, username := range ent.Aggressors() {
		if room.HasPlayer(username) {
			present = append(present, username)
		}
	}
	if len(present) > 0 {
		return present[p.src.Intn(len(present))]
	}

	if len(room.Players) == 0 {
		return ""
	}
	username := room.Players[p.src.Intn(len(room.Players))]
	ent.AddAggression(username, 0)
	return username
}

// processNPCAttack resolves one NPC attack against username: a flat hit
// roll, damage drawn from the attacker's range, health clamped at the
// floor, a silent rest/meditation interruption, notification, and
// death-or-unconscious dispatch, all synchronously within this call.
func (p *Processor) processNPCAttack(attacker entity.CombatEntity, username, roomID string) {
	sess, ok := p.sessions.GetPlayer(username)
	if !ok {
		p.logger.Debug("npc attack target has no session, skipping",
			zap.String("room", roomID),
			zap.String("target", username),
		)
		return
	}

	hit := rng.Chance(p.src, p.hitChance)
	damage := 0
	if hit {
		damage = attacker.AttackDamage(p.src)
		sess.Health = ClampHealth(sess.Health, damage)
		sess.InCombat = true
		sess.Resting = false
		sess.Meditating = false

		health := sess.Health
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := p.users.UpdateUserStats(ctx, username, player.StatsUpdate{Health: player.IntPtr(health)}); err != nil {
				p.logger.Warn("persisting combat damage failed",
					zap.String("player", username),
					zap.Error(err),
				)
			}
		}()
	}

	p.notifier.NotifyAttackResult(attacker, sess, roomID, hit, damage)
	p.bus.Publish(event.Event{
		Topic:  event.TopicAttack,
		RoomID: roomID,
		Actor:  attacker.Name(),
		Target: username,
		Damage: damage,
		Hit:    hit,
		Round:  p.currentRound,
		At:     time.Now(),
	})

	if hit && sess.Health <= UnconsciousThreshold {
		p.death.HandlePlayerHealth(sess, roomID)
	}
}
