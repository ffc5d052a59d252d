// Package entity provides combat-capable actors: NPC templates, live NPC
// instances (including merchant variants), and the capability interface the
// combat engine resolves attacks against.
package entity

import (
	"fmt"

	"github.com/davrenn/emberfall/internal/game/rng"
)

// CombatEntity is the fixed capability set every combat actor exposes.
// Variants: live NPC instances (hostile, merchant, or plain) and the
// player-backed adapter owned by the combat package.
type CombatEntity interface {
	// Name returns the display name of the entity.
	Name() string
	// Health returns current hit points.
	Health() int
	// MaxHealth returns maximum hit points.
	MaxHealth() int
	// IsAlive reports whether health is above zero.
	IsAlive() bool
	// IsHostile reports whether the entity initiates attacks on players.
	IsHostile() bool
	// IsPassive reports whether the entity never attacks even when hostile
	// bookkeeping registers it (merchant default).
	IsPassive() bool
	// AttackDamage draws one attack's damage from the entity's damage range.
	AttackDamage(src rng.Source) int
	// AttackText renders the entity's attack flavor line against targetLabel.
	AttackText(targetLabel string) string
	// TakeDamage reduces health by amount, flooring at zero.
	TakeDamage(amount int)
	// AddAggression records awareness of (and hostility toward) username.
	// Recorded damage accumulates across calls.
	AddAggression(username string, damage int)
	// HasAggression reports whether username is a recorded aggressor.
	HasAggression(username string) bool
	// Aggressors returns a snapshot of all recorded aggressor usernames.
	Aggressors() []string
}

// NPC is a live non-player combat entity occupying a room.
//
// Aggression is a weak, room-scoped relation: an entry means "this NPC is
// aware of / hostile toward this player", not ownership. Mutation is
// serialized by the combat engine lock; NPC itself holds no mutex.
type NPC struct {
	// ID uniquely identifies this runtime instance.
	ID string
	// TemplateID is the source template's ID; empty for placeholders.
	TemplateID string
	// RoomID is the room this instance currently occupies.
	RoomID string

	name        string
	health      int
	maxHealth   int
	hostile     bool
	passive     bool
	minDamage   int
	maxDamage   int
	attackTexts []string
	aggression  map[string]int // username → cumulative damage dealt
	attackIdx   int
}

// NewInstance creates a live NPC instance from a template, placed in roomID.
//
// Precondition: id must be non-empty; tmpl must be non-nil; roomID must be non-empty.
// Postcondition: Health equals tmpl.MaxHealth; aggression starts empty.
func NewInstance(id string, tmpl *Template, roomID string) *NPC {
	return &NPC{
		ID:          id,
		TemplateID:  tmpl.ID,
		RoomID:      roomID,
		name:        tmpl.Name,
		health:      tmpl.MaxHealth,
		maxHealth:   tmpl.MaxHealth,
		hostile:     tmpl.Hostile && !tmpl.Merchant,
		passive:     tmpl.Passive || tmpl.Merchant,
		minDamage:   tmpl.MinDamage,
		maxDamage:   tmpl.MaxDamage,
		attackTexts: tmpl.AttackTexts,
		aggression:  make(map[string]int),
	}
}

// NewPlaceholder creates a minimal stand-in NPC for a missing template so
// callers never observe a nil entity for a name the room registry knows.
//
// Postcondition: the placeholder is alive, non-hostile, and passive.
func NewPlaceholder(id, name, roomID string) *NPC {
	return &NPC{
		ID:         id,
		RoomID:     roomID,
		name:       name,
		health:     1,
		maxHealth:  1,
		passive:    true,
		aggression: make(map[string]int),
	}
}

// Name returns the display name of the NPC.
func (n *NPC) Name() string { return n.name }

// Health returns current hit points.
func (n *NPC) Health() int { return n.health }

// MaxHealth returns maximum hit points.
func (n *NPC) MaxHealth() int { return n.maxHealth }

// IsAlive reports whether the NPC has more than zero hit points.
func (n *NPC) IsAlive() bool { return n.health > 0 }

// IsHostile reports whether the NPC initiates attacks on players.
func (n *NPC) IsHostile() bool { return n.hostile }

// IsPassive reports whether the NPC is barred from attacking.
func (n *NPC) IsPassive() bool { return n.passive }

// AttackDamage draws a uniform damage value from [MinDamage, MaxDamage].
//
// Precondition: src must be non-nil.
func (n *NPC) AttackDamage(src rng.Source) int {
	return rng.Between(src, n.minDamage, n.maxDamage)
}

// AttackText renders the next attack flavor line against targetLabel,
// cycling through the template's attack texts. Falls back to a generic
// line when the template defines none.
func (n *NPC) AttackText(targetLabel string) string {
	if len(n.attackTexts) == 0 {
		return fmt.Sprintf("%s attacks %s", n.name, targetLabel)
	}
	text := n.attackTexts[n.attackIdx%len(n.attackTexts)]
	n.attackIdx++
	return fmt.Sprintf(text, targetLabel)
}

// TakeDamage reduces health by amount, flooring at zero.
//
// Precondition: amount must be >= 0.
// Postcondition: Health() >= 0.
func (n *NPC) TakeDamage(amount int) {
	n.health -= amount
	if n.health < 0 {
		n.health = 0
	}
}

// AddAggression records username as an aggressor, accumulating damage.
// A zero damage entry models "the NPC notices you" before any blow lands.
func (n *NPC) AddAggression(username string, damage int) {
	n.aggression[username] += damage
}

// HasAggression reports whether username is a recorded aggressor.
func (n *NPC) HasAggression(username string) bool {
	_, ok := n.aggression[username]
	return ok
}

// Aggressors returns a snapshot of all recorded aggressor usernames.
//
// Postcondition: Returns a non-nil slice; order is unspecified.
func (n *NPC) Aggressors() []string {
	out := make([]string, 0, len(n.aggression))
	for username := range n.aggression {
		out = append(out, username)
	}
	return out
}

// AggressionDamage returns the cumulative damage recorded for username,
// or 0 when username is not an aggressor.
func (n *NPC) AggressionDamage(username string) int {
	return n.aggression[username]
}

// ClearAggression drops the aggressor record for username. Used when a
// target disconnects or dies.
func (n *NPC) ClearAggression(username string) {
	delete(n.aggression, username)
}
