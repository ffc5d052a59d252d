package combat

import (
	"math"
	"strings"
	"time"

	"github.com/davrenn/emberfall/internal/game/rng"
)

// State decides whether attacks and movement against or by a player go
// through, based on the player's combat condition. States carry per-player
// bookkeeping (e.g. when fleeing started) but perform no I/O themselves;
// side effects run through the injected callbacks.
type State interface {
	// Name identifies the state: "active", "fleeing", or "unconscious".
	Name() string
	// HandleAttack reports whether attacker's strike on target lands as far
	// as the target's condition is concerned. The hit roll itself belongs to
	// the attack resolution, not the state.
	HandleAttack(attacker, target string) bool
	// HandleMovement reports whether actor may leave the room.
	HandleMovement(actor, direction string) bool
	// HandleDisconnect performs state-specific cleanup when actor's
	// connection drops.
	HandleDisconnect(actor string)
}

// AttackFunc is invoked by states that let an attack proceed; it reports
// whether the attack connected.
type AttackFunc func(attacker, target string) bool

// MovementFunc is invoked by states that let movement proceed; it reports
// whether the move succeeded.
type MovementFunc func(actor, direction string) bool

// DisconnectFunc performs disconnect cleanup for actor.
type DisconnectFunc func(actor string)

// EvadeFunc is invoked when a fleeing target slips an incoming attack, so
// the room can hear about it.
type EvadeFunc func(attacker, target string)

// FleeChance returns the probability that a fleeing player evades an
// incoming attack after being in the fleeing state for elapsed: 20% at
// entry, growing 10% per three seconds, capped at 80%.
func FleeChance(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	chance := 0.2 + elapsed.Seconds()/3*0.1
	return math.Min(chance, 0.8)
}

// ActiveState is the default combat condition: attacks and movement both
// pass straight through to the engine.
type ActiveState struct {
	attack     AttackFunc
	movement   MovementFunc
	disconnect DisconnectFunc
}

// NewActiveState creates an ActiveState delegating to the given callbacks.
func NewActiveState(attack AttackFunc, movement MovementFunc, disconnect DisconnectFunc) *ActiveState {
	return &ActiveState{attack: attack, movement: movement, disconnect: disconnect}
}

func (s *ActiveState) Name() string { return "active" }

func (s *ActiveState) HandleAttack(attacker, target string) bool {
	return s.attack(attacker, target)
}

func (s *ActiveState) HandleMovement(actor, direction string) bool {
	return s.movement(actor, direction)
}

func (s *ActiveState) HandleDisconnect(actor string) {
	s.disconnect(actor)
}

// FleeingState grants the player a time-scaled chance to evade incoming
// attacks while still allowing movement. The evasion roll runs before the
// attack resolution; an evaded attack never touches the target.
type FleeingState struct {
	attack     AttackFunc
	movement   MovementFunc
	disconnect DisconnectFunc
	evaded     EvadeFunc
	src        rng.Source
	now        func() time.Time
	enteredAt  time.Time
}

// NewFleeingState creates a FleeingState whose evasion window opens at
// now(). The clock is injected so the time-scaled chance is testable.
// evaded may be nil when evasions need no announcement.
func NewFleeingState(attack AttackFunc, movement MovementFunc, disconnect DisconnectFunc, evaded EvadeFunc, src rng.Source, now func() time.Time) *FleeingState {
	return &FleeingState{
		attack:     attack,
		movement:   movement,
		disconnect: disconnect,
		evaded:     evaded,
		src:        src,
		now:        now,
		enteredAt:  now(),
	}
}

func (s *FleeingState) Name() string { return "fleeing" }

// HandleAttack rolls evasion against the elapsed fleeing time; an evasion
// swallows the attack entirely, otherwise the normal resolution runs.
func (s *FleeingState) HandleAttack(attacker, target string) bool {
	if rng.Chance(s.src, FleeChance(s.now().Sub(s.enteredAt))) {
		if s.evaded != nil {
			s.evaded(attacker, target)
		}
		return false
	}
	return s.attack(attacker, target)
}

func (s *FleeingState) HandleMovement(actor, direction string) bool {
	return s.movement(actor, direction)
}

func (s *FleeingState) HandleDisconnect(actor string) {
	s.disconnect(actor)
}

// UnconsciousState covers a player whose health is at or below zero but
// above the death floor: every attack on them lands without a roll, they
// cannot move, and they cannot act. The only rejected attack is the player
// striking themselves.
type UnconsciousState struct {
	disconnect DisconnectFunc
}

// NewUnconsciousState creates an UnconsciousState.
func NewUnconsciousState(disconnect DisconnectFunc) *UnconsciousState {
	return &UnconsciousState{disconnect: disconnect}
}

func (s *UnconsciousState) Name() string { return "unconscious" }

// HandleAttack always reports a hit, bypassing the attack callback
// entirely, except for the degenerate self-attack which is rejected.
func (s *UnconsciousState) HandleAttack(attacker, target string) bool {
	return !strings.EqualFold(attacker, target)
}

// HandleMovement always refuses: unconscious players stay where they fell.
func (s *UnconsciousState) HandleMovement(actor, direction string) bool {
	return false
}

func (s *UnconsciousState) HandleDisconnect(actor string) {
	s.disconnect(actor)
}
