// Package combat implements the real-time combat engine: per-tick hostile
// NPC scanning and attack resolution, aggression tracking, player
// death/unconsciousness handling, and the state machine gating player
// combat actions.
package combat

import (
	"context"
	"fmt"

	"github.com/davrenn/emberfall/internal/game/entity"
	"github.com/davrenn/emberfall/internal/game/player"
	"github.com/davrenn/emberfall/internal/game/rng"
	"github.com/davrenn/emberfall/internal/game/session"
	"github.com/davrenn/emberfall/internal/game/world"
)

const (
	// HealthFloor is the lowest value player health can reach. At or below
	// this value the player is dead; damage application clamps here.
	HealthFloor = -10
	// UnconsciousThreshold is the top of the unconscious band: health in
	// (HealthFloor, UnconsciousThreshold] means unconscious, not dead.
	UnconsciousThreshold = 0

	// DefaultHitChance is the base probability that any attack lands.
	DefaultHitChance = 0.5
	// DefaultFleeChance is the flat success probability of the flee command.
	DefaultFleeChance = 0.3
)

// ClampHealth applies damage to health and clamps the result at HealthFloor.
//
// Precondition: damage >= 0.
// Postcondition: Returns a value >= HealthFloor.
func ClampHealth(health, damage int) int {
	health -= damage
	if health < HealthFloor {
		health = HealthFloor
	}
	return health
}

// IsDeadHealth reports whether health is in the dead band (<= HealthFloor).
func IsDeadHealth(health int) bool {
	return health <= HealthFloor
}

// IsUnconsciousHealth reports whether health is in the unconscious band
// (HealthFloor, UnconsciousThreshold].
func IsUnconsciousHealth(health int) bool {
	return health > HealthFloor && health <= UnconsciousThreshold
}

// UserStore is the persistence surface combat writes through. Combat treats
// it as an at-least-once, eventually-durable store and never waits on it to
// decide gameplay outcomes.
type UserStore interface {
	// GetUser loads the persisted record for username.
	GetUser(ctx context.Context, username string) (*player.Player, error)
	// UpdateUserStats applies a partial update of combat-relevant fields.
	UpdateUserStats(ctx context.Context, username string, upd player.StatsUpdate) error
	// UpdateUserInventory replaces the persisted inventory and currency.
	UpdateUserInventory(ctx context.Context, username string, items []string, cur world.Currency) error
}

// PlayerEntity adapts a connected player's session to the CombatEntity
// capability so player-initiated attacks resolve through the same interface
// as NPC attacks.
//
// Players are never hostile or passive in the NPC sense and record no
// aggression of their own; the aggression methods are no-ops.
type PlayerEntity struct {
	sess      *session.PlayerSession
	minDamage int
	maxDamage int
}

// NewPlayerEntity wraps sess as a CombatEntity with the given damage range.
//
// Precondition: sess must be non-nil; 0 <= minDamage <= maxDamage.
func NewPlayerEntity(sess *session.PlayerSession, minDamage, maxDamage int) *PlayerEntity {
	return &PlayerEntity{sess: sess, minDamage: minDamage, maxDamage: maxDamage}
}

// Name returns the player's username.
func (p *PlayerEntity) Name() string { return p.sess.Username }

// Health returns the player's current health.
func (p *PlayerEntity) Health() int { return p.sess.Health }

// MaxHealth returns the player's maximum health.
func (p *PlayerEntity) MaxHealth() int { return p.sess.MaxHealth }

// IsAlive reports whether the player has positive health.
func (p *PlayerEntity) IsAlive() bool { return p.sess.IsAlive() }

// IsHostile always returns false for players.
func (p *PlayerEntity) IsHostile() bool { return false }

// IsPassive always returns false for players.
func (p *PlayerEntity) IsPassive() bool { return false }

// AttackDamage draws a uniform damage value from the player's damage range.
func (p *PlayerEntity) AttackDamage(src rng.Source) int {
	return rng.Between(src, p.minDamage, p.maxDamage)
}

// AttackText renders a generic player attack line against targetLabel.
func (p *PlayerEntity) AttackText(targetLabel string) string {
	return fmt.Sprintf("%s attacks %s", p.sess.Username, targetLabel)
}

// TakeDamage applies damage to the session's health, clamped at HealthFloor.
func (p *PlayerEntity) TakeDamage(amount int) {
	p.sess.Health = ClampHealth(p.sess.Health, amount)
}

// AddAggression is a no-op; players do not hold aggression records.
func (p *PlayerEntity) AddAggression(string, int) {}

// HasAggression always returns false for players.
func (p *PlayerEntity) HasAggression(string) bool { return false }

// Aggressors always returns an empty slice for players.
func (p *PlayerEntity) Aggressors() []string { return nil }

// Session returns the wrapped player session.
func (p *PlayerEntity) Session() *session.PlayerSession { return p.sess }

var _ entity.CombatEntity = (*PlayerEntity)(nil)
