package gameserver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/combat"
	"github.com/davrenn/emberfall/internal/game/entity"
	"github.com/davrenn/emberfall/internal/game/player"
	"github.com/davrenn/emberfall/internal/game/rng"
	"github.com/davrenn/emberfall/internal/game/session"
	"github.com/davrenn/emberfall/internal/game/world"
)

// CombatHandler is the command-facing surface of the combat engine: player
// attack and flee commands, combat-aware movement, disconnect cleanup, and
// the periodic tick all enter here.
//
// combatMu serialises the tick path against command and disconnect calls so
// the engine always observes a consistent room snapshot; every public method
// takes it before touching engine state.
type CombatHandler struct {
	combatMu sync.Mutex

	processor *combat.Processor
	tracker   *combat.EntityTracker
	factory   *combat.CommandFactory
	death     *combat.PlayerDeathHandler
	notifier  *combat.Notifier
	sessions  *session.Manager
	worlds    *world.Manager
	entities  *entity.Manager
	users     combat.UserStore
	src       rng.Source
	now       func() time.Time
	logger    *zap.Logger

	// states: lowercase username → current combat condition. Entries are
	// created lazily and re-derived when the unconscious flag flips.
	states map[string]combat.State
	// targets: lowercase username → composite IDs of entities the player is
	// attacking. Kept in lockstep with the tracker's targeter sets.
	targets map[string]map[string]bool
}

// NewCombatHandler creates a CombatHandler.
//
// Precondition: all pointer arguments must be non-nil; now may be nil, in
// which case wall-clock time is used.
func NewCombatHandler(
	processor *combat.Processor,
	tracker *combat.EntityTracker,
	factory *combat.CommandFactory,
	death *combat.PlayerDeathHandler,
	notifier *combat.Notifier,
	sessions *session.Manager,
	worlds *world.Manager,
	entities *entity.Manager,
	users combat.UserStore,
	src rng.Source,
	now func() time.Time,
	logger *zap.Logger,
) *CombatHandler {
	if now == nil {
		now = time.Now
	}
	return &CombatHandler{
		processor: processor,
		tracker:   tracker,
		factory:   factory,
		death:     death,
		notifier:  notifier,
		sessions:  sessions,
		worlds:    worlds,
		entities:  entities,
		users:     users,
		src:       src,
		now:       now,
		logger:    logger,
		states:    make(map[string]combat.State),
		targets:   make(map[string]map[string]bool),
	}
}

// Tick advances one combat round: the round counter first, then the full
// room scan-and-resolve pass.
func (h *CombatHandler) Tick() {
	h.combatMu.Lock()
	defer h.combatMu.Unlock()
	h.processor.ProcessCombatRound()
	h.processor.ProcessRoomCombat()
}

// Attack resolves an attack by username against targetRef, which may name
// an NPC (instance ID, template ID, or display name) or another player in
// the same room. NPC matches win ties.
//
// Postcondition: Returns whether the attack landed, or an error when the
// actor cannot act or the target cannot be resolved.
func (h *CombatHandler) Attack(username, targetRef string) (bool, error) {
	h.combatMu.Lock()
	defer h.combatMu.Unlock()

	sess, ok := h.sessions.GetPlayer(username)
	if !ok {
		return false, fmt.Errorf("player %q not found", username)
	}
	if sess.Unconscious {
		return false, fmt.Errorf("you are unconscious")
	}
	room, ok := h.worlds.GetRoom(sess.RoomID)
	if !ok {
		return false, fmt.Errorf("room %q not found", sess.RoomID)
	}
	if room.IsSafe() {
		return false, fmt.Errorf("a calming presence here prevents violence")
	}

	if npc := h.entities.FindInRoom(sess.RoomID, targetRef); npc != nil {
		return h.attackNPCLocked(sess, npc, room)
	}

	target, ok := h.sessions.GetPlayer(targetRef)
	if !ok || !room.HasPlayer(targetRef) {
		return false, fmt.Errorf("you don't see %q here", targetRef)
	}
	if strings.EqualFold(sess.Username, target.Username) {
		return false, fmt.Errorf("you cannot attack yourself")
	}
	return h.attackPlayerLocked(sess, target, room)
}

// attackNPCLocked registers the NPC as in-combat, records the player as a
// targeter, and executes the attack. Caller must hold combatMu.
func (h *CombatHandler) attackNPCLocked(sess *session.PlayerSession, npc *entity.NPC, room *world.Room) (bool, error) {
	if !npc.IsAlive() {
		return false, fmt.Errorf("%s is already dead", npc.Name())
	}

	entityID := combat.EntityID(room.ID, npc.Name())
	alreadyFighting := h.tracker.IsEntityInCombat(room.ID, npc.Name())
	h.tracker.AddEntityToCombat(room.ID, npc.Name())
	h.tracker.TrackTargeter(entityID, sess.Username)
	h.rememberTarget(sess.Username, entityID)
	if !alreadyFighting {
		h.notifier.BroadcastCombatStart(sess, npc.Name())
	}

	hit := h.factory.AttackNPC(sess, npc, room.ID).Execute()

	if !npc.IsAlive() {
		h.handleNPCDefeatLocked(room.ID, npc)
	}
	return hit, nil
}

// attackPlayerLocked routes the attack through the victim's combat state:
// an active or fleeing victim gets the normal resolution (fleeing adds the
// time-scaled evasion), an unconscious victim is hit without a roll.
// Caller must hold combatMu.
func (h *CombatHandler) attackPlayerLocked(sess, target *session.PlayerSession, room *world.Room) (bool, error) {
	state := h.stateForLocked(target)
	if state.Name() == "unconscious" {
		if !state.HandleAttack(sess.Username, target.Username) {
			return false, fmt.Errorf("you cannot attack yourself")
		}
		h.applyGuaranteedHitLocked(sess, target, room.ID)
		return true, nil
	}
	return state.HandleAttack(sess.Username, target.Username), nil
}

// applyGuaranteedHitLocked lands a roll-free attack on an unconscious
// victim. Caller must hold combatMu.
func (h *CombatHandler) applyGuaranteedHitLocked(sess, target *session.PlayerSession, roomID string) {
	damage := combat.NewPlayerEntity(sess, h.factory.MinDamage(), h.factory.MaxDamage()).AttackDamage(h.src)
	target.Health = combat.ClampHealth(target.Health, damage)
	sess.InCombat = true

	attacker := combat.NewPlayerEntity(sess, h.factory.MinDamage(), h.factory.MaxDamage())
	h.notifier.NotifyAttackResult(attacker, target, roomID, true, damage)

	health := target.Health
	username := target.Username
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.users.UpdateUserStats(ctx, username, player.StatsUpdate{Health: player.IntPtr(health)}); err != nil {
			h.logger.Warn("persisting attack damage failed",
				zap.String("player", username),
				zap.Error(err),
			)
		}
	}()

	if target.Health <= combat.UnconsciousThreshold {
		h.death.HandlePlayerHealth(target, roomID)
	}
}

// Flee is the explicit flee attempt: a flat escape chance, independent of
// any fleeing evasion already accumulated. Success breaks the player out of
// combat; failure leaves them in the fleeing condition, where incoming
// attacks get progressively easier to evade.
func (h *CombatHandler) Flee(username string) (bool, error) {
	h.combatMu.Lock()
	defer h.combatMu.Unlock()

	sess, ok := h.sessions.GetPlayer(username)
	if !ok {
		return false, fmt.Errorf("player %q not found", username)
	}
	if sess.Unconscious {
		return false, fmt.Errorf("you are unconscious")
	}
	if !sess.InCombat {
		return false, fmt.Errorf("you are not in combat")
	}

	escaped := h.factory.Flee(sess, sess.RoomID).Execute()
	if escaped {
		h.breakCombatLocked(sess)
		return true, nil
	}

	key := strings.ToLower(sess.Username)
	if _, fleeing := h.states[key].(*combat.FleeingState); !fleeing {
		h.states[key] = h.newFleeingStateLocked()
	}
	return false, nil
}

// Movement attempts to move username through direction. Movement is gated
// by the player's combat condition; a successful move breaks combat.
func (h *CombatHandler) Movement(username, direction string) error {
	h.combatMu.Lock()
	defer h.combatMu.Unlock()

	sess, ok := h.sessions.GetPlayer(username)
	if !ok {
		return fmt.Errorf("player %q not found", username)
	}

	if !h.stateForLocked(sess).HandleMovement(sess.Username, direction) {
		return fmt.Errorf("you cannot move right now")
	}
	return nil
}

// Disconnect cleans up username's combat presence: targeter records,
// aggression held by NPCs, the attacked-this-round marks of entities that
// were fighting them, and finally room and session membership.
func (h *CombatHandler) Disconnect(username string) {
	h.combatMu.Lock()
	defer h.combatMu.Unlock()

	sess, ok := h.sessions.GetPlayer(username)
	if !ok {
		return
	}

	key := strings.ToLower(sess.Username)
	for entityID := range h.targets[key] {
		h.tracker.RemoveTargeter(entityID, sess.Username)
		// Freed entities may re-target immediately instead of losing the
		// rest of the round to a vanished opponent.
		h.processor.ResetEntityAttack(entityID)
	}
	delete(h.targets, key)
	delete(h.states, key)

	for _, npc := range h.entities.InstancesInRoom(sess.RoomID) {
		npc.ClearAggression(sess.Username)
	}

	h.worlds.RemovePlayerFromRoom(sess.RoomID, sess.Username)
	if err := h.sessions.RemovePlayer(sess.Username); err != nil {
		h.logger.Warn("removing session on disconnect failed",
			zap.String("player", sess.Username),
			zap.Error(err),
		)
	}
}

// StateName returns the player's current combat condition name, for status
// displays.
func (h *CombatHandler) StateName(username string) string {
	h.combatMu.Lock()
	defer h.combatMu.Unlock()
	sess, ok := h.sessions.GetPlayer(username)
	if !ok {
		return ""
	}
	return h.stateForLocked(sess).Name()
}

// stateForLocked returns sess's current state, deriving transitions from
// the unconscious flag: the flag flipping on forces UnconsciousState, the
// flag flipping off (respawn) restores ActiveState. Caller must hold
// combatMu.
func (h *CombatHandler) stateForLocked(sess *session.PlayerSession) combat.State {
	key := strings.ToLower(sess.Username)
	state, ok := h.states[key]

	if sess.Unconscious {
		if _, unconscious := state.(*combat.UnconsciousState); !ok || !unconscious {
			state = combat.NewUnconsciousState(h.disconnectFunc())
			h.states[key] = state
		}
		return state
	}

	if !ok {
		state = h.newActiveStateLocked()
		h.states[key] = state
		return state
	}
	if _, unconscious := state.(*combat.UnconsciousState); unconscious {
		state = h.newActiveStateLocked()
		h.states[key] = state
	}
	return state
}

func (h *CombatHandler) newActiveStateLocked() combat.State {
	return combat.NewActiveState(h.attackFunc(), h.movementFunc(), h.disconnectFunc())
}

func (h *CombatHandler) newFleeingStateLocked() combat.State {
	return combat.NewFleeingState(h.attackFunc(), h.movementFunc(), h.disconnectFunc(), h.evadeFunc(), h.src, h.now)
}

// evadeFunc announces a fleeing target slipping an attack.
func (h *CombatHandler) evadeFunc() combat.EvadeFunc {
	return func(attacker, target string) {
		sess, ok := h.sessions.GetPlayer(target)
		if !ok {
			return
		}
		h.notifier.BroadcastRoomMessage(sess.RoomID,
			fmt.Sprintf("%s darts away from %s's attack!", sess.Username, attacker),
			combat.ColorInfo)
	}
}

// attackFunc is the state callback resolving a player-vs-player attack.
// Runs with combatMu already held by the public entry point.
func (h *CombatHandler) attackFunc() combat.AttackFunc {
	return func(attacker, target string) bool {
		atk, ok := h.sessions.GetPlayer(attacker)
		if !ok {
			return false
		}
		tgt, ok := h.sessions.GetPlayer(target)
		if !ok {
			return false
		}
		return h.factory.AttackPlayer(atk, tgt, atk.RoomID).Execute()
	}
}

// movementFunc is the state callback performing an exit transition and
// breaking combat. Runs with combatMu already held.
func (h *CombatHandler) movementFunc() combat.MovementFunc {
	return func(actor, direction string) bool {
		sess, ok := h.sessions.GetPlayer(actor)
		if !ok {
			return false
		}
		room, ok := h.worlds.GetRoom(sess.RoomID)
		if !ok {
			return false
		}

		var destID string
		for _, exit := range room.Exits {
			if strings.EqualFold(exit.Direction, direction) {
				destID = exit.TargetRoom
				break
			}
		}
		if destID == "" {
			return false
		}

		h.worlds.RemovePlayerFromRoom(room.ID, sess.Username)
		h.notifier.BroadcastRoomMessage(room.ID,
			fmt.Sprintf("%s leaves %s.", sess.Username, strings.ToLower(direction)),
			combat.ColorInfo, sess.Username)
		if err := h.worlds.AddPlayerToRoom(destID, sess.Username); err != nil {
			h.logger.Warn("moving player to room failed",
				zap.String("player", sess.Username),
				zap.String("room", destID),
				zap.Error(err),
			)
			return false
		}
		sess.RoomID = destID
		h.breakCombatLocked(sess)

		if dest, ok := h.worlds.GetRoom(destID); ok {
			h.notifier.BroadcastRoomMessage(destID,
				fmt.Sprintf("%s arrives.", sess.Username),
				combat.ColorInfo, sess.Username)
			h.notifier.NotifyRoomDescription(sess, dest)
		}

		roomID := destID
		username := sess.Username
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.users.UpdateUserStats(ctx, username, player.StatsUpdate{RoomID: player.StringPtr(roomID)}); err != nil {
				h.logger.Warn("persisting room change failed",
					zap.String("player", username),
					zap.Error(err),
				)
			}
		}()
		return true
	}
}

// disconnectFunc is the state callback for connection loss; the public
// Disconnect path performs the actual cleanup.
func (h *CombatHandler) disconnectFunc() combat.DisconnectFunc {
	return func(actor string) {}
}

// breakCombatLocked takes sess out of combat: the flag, its targeter
// records, and its condition all reset. Caller must hold combatMu.
func (h *CombatHandler) breakCombatLocked(sess *session.PlayerSession) {
	sess.InCombat = false
	key := strings.ToLower(sess.Username)
	for entityID := range h.targets[key] {
		h.tracker.RemoveTargeter(entityID, sess.Username)
	}
	delete(h.targets, key)
	delete(h.states, key)
}

// handleNPCDefeatLocked despawns a slain NPC and releases everyone who was
// fighting it. Caller must hold combatMu.
func (h *CombatHandler) handleNPCDefeatLocked(roomID string, npc *entity.NPC) {
	entityID := combat.EntityID(roomID, npc.Name())

	h.notifier.BroadcastRoomMessage(roomID,
		fmt.Sprintf("%s collapses to the ground, dead!", npc.Name()),
		combat.ColorCombat)

	for _, username := range h.tracker.Targeters(entityID) {
		h.tracker.RemoveTargeter(entityID, username)
		key := strings.ToLower(username)
		if set, ok := h.targets[key]; ok {
			delete(set, entityID)
			if len(set) == 0 {
				delete(h.targets, key)
				if sess, ok := h.sessions.GetPlayer(username); ok {
					sess.InCombat = false
				}
			}
		}
	}

	h.tracker.CleanupDeadEntity(roomID, npc.Name())
	h.tracker.RemoveEntityFromCombat(roomID, npc.Name())
	if err := h.entities.Remove(npc.ID); err != nil {
		h.logger.Debug("despawning defeated entity failed",
			zap.String("entity", npc.ID),
			zap.Error(err),
		)
	}
}

// rememberTarget records entityID in username's target set. Caller must
// hold combatMu.
func (h *CombatHandler) rememberTarget(username, entityID string) {
	key := strings.ToLower(username)
	if h.targets[key] == nil {
		h.targets[key] = make(map[string]bool)
	}
	h.targets[key][entityID] = true
}
