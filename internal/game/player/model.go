// Package player defines the persisted player record and the partial-update
// types the combat engine writes through the user store.
package player

import (
	"time"

	"github.com/davrenn/emberfall/internal/game/world"
)

// Player is the persisted user record, the subset relevant to gameplay.
type Player struct {
	// Username is the unique account name.
	Username string
	// Health is the persisted hit points; may be negative down to -10.
	Health int
	// MaxHealth is the maximum hit points.
	MaxHealth int
	// Unconscious is set while health is in the (-10, 0] band.
	Unconscious bool
	// RoomID is the last persisted room location.
	RoomID string
	// Inventory holds opaque item identifiers.
	Inventory []string
	// Currency is the player's coin purse.
	Currency world.Currency
	// CreatedAt and UpdatedAt are set by the store.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatsUpdate is a partial update of a player's combat-relevant fields.
// Nil pointers mean "leave unchanged", so a single update call can carry
// anything from a lone health write to the full death-respawn triple.
type StatsUpdate struct {
	Health      *int
	Unconscious *bool
	RoomID      *string
}

// IntPtr returns a pointer to v, for building StatsUpdate literals.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v, for building StatsUpdate literals.
func BoolPtr(v bool) *bool { return &v }

// StringPtr returns a pointer to v, for building StatsUpdate literals.
func StringPtr(v string) *string { return &v }
