// Package world provides the game world model: zones, rooms, exits, and the
// per-room state the combat engine reads and writes (player roster, flags,
// dropped items, and currency).
package world

import (
	"fmt"
	"strings"
)

// FlagSafe marks a room that is exempt from all hostile-NPC-initiated combat.
const FlagSafe = "safe"

// Currency is a three-denomination coin amount attached to rooms and players.
type Currency struct {
	Gold   int `yaml:"gold"`
	Silver int `yaml:"silver"`
	Copper int `yaml:"copper"`
}

// Add returns the sum of c and other.
func (c Currency) Add(other Currency) Currency {
	return Currency{
		Gold:   c.Gold + other.Gold,
		Silver: c.Silver + other.Silver,
		Copper: c.Copper + other.Copper,
	}
}

// IsZero reports whether all three denominations are zero.
func (c Currency) IsZero() bool {
	return c.Gold == 0 && c.Silver == 0 && c.Copper == 0
}

// String returns a human-readable coin listing, omitting zero denominations.
// A fully zero amount renders as "nothing".
func (c Currency) String() string {
	var parts []string
	if c.Gold > 0 {
		parts = append(parts, fmt.Sprintf("%d gold", c.Gold))
	}
	if c.Silver > 0 {
		parts = append(parts, fmt.Sprintf("%d silver", c.Silver))
	}
	if c.Copper > 0 {
		parts = append(parts, fmt.Sprintf("%d copper", c.Copper))
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, ", ")
}

// Item is an item instance lying in a room. Item definitions are owned by
// the inventory system; combat treats them as opaque identifiers.
type Item struct {
	// InstanceID uniquely identifies this dropped instance.
	InstanceID string
	// Name is the opaque item identifier (e.g. "sword").
	Name string
}

// Exit represents a passage from one room to another.
type Exit struct {
	// Direction is the compass direction or named exit (e.g. "stairs").
	Direction string `yaml:"direction"`
	// TargetRoom is the ID of the destination room.
	TargetRoom string `yaml:"target"`
}

// SpawnConfig defines how many instances of an NPC template populate a room.
type SpawnConfig struct {
	// Template is the NPC template ID to spawn.
	Template string `yaml:"template"`
	// Count is the number of live instances of this template in the room.
	Count int `yaml:"count"`
}

// Room represents a location in the game world.
//
// Invariant: Players preserves arrival order; it carries no priority meaning.
type Room struct {
	// ID uniquely identifies this room within the world.
	ID string `yaml:"id"`
	// ZoneID identifies the zone this room belongs to.
	ZoneID string `yaml:"-"`
	// Title is the short display name of the room.
	Title string `yaml:"title"`
	// Description is the multi-line room description shown to players.
	Description string `yaml:"description"`
	// Exits lists all passages leading out of this room.
	Exits []Exit `yaml:"exits"`
	// Flags holds room behavior tags such as "safe".
	Flags map[string]bool `yaml:"flags"`
	// Players is the roster of usernames currently in the room, in arrival order.
	Players []string `yaml:"-"`
	// Currency is the coin pile on the room floor (merged corpse drops).
	Currency Currency `yaml:"-"`
	// Items holds item instances lying in the room.
	Items []Item `yaml:"-"`
	// Spawns lists NPC templates that populate this room.
	Spawns []SpawnConfig `yaml:"spawns"`
}

// IsSafe reports whether the room carries the "safe" flag.
func (r *Room) IsSafe() bool {
	return r.Flags[FlagSafe]
}

// HasPlayer reports whether username is on the room roster (case-insensitive).
func (r *Room) HasPlayer(username string) bool {
	for _, p := range r.Players {
		if strings.EqualFold(p, username) {
			return true
		}
	}
	return false
}

// AddPlayer appends username to the roster if not already present.
//
// Postcondition: username appears exactly once on the roster.
func (r *Room) AddPlayer(username string) {
	if r.HasPlayer(username) {
		return
	}
	r.Players = append(r.Players, username)
}

// RemovePlayer removes username from the roster (case-insensitive).
//
// Postcondition: username does not appear on the roster; order of the
// remaining entries is preserved.
func (r *Room) RemovePlayer(username string) {
	for i, p := range r.Players {
		if strings.EqualFold(p, username) {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return
		}
	}
}

// Zone groups related rooms into a themed area.
type Zone struct {
	// ID uniquely identifies this zone.
	ID string `yaml:"id"`
	// Name is the display name of the zone.
	Name string `yaml:"name"`
	// StartRoom is the ID of the default entry (and respawn) room.
	StartRoom string `yaml:"start_room"`
	// Rooms contains all rooms in this zone, keyed by room ID.
	Rooms map[string]*Room `yaml:"-"`
}

// Validate checks zone invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (z *Zone) Validate() error {
	if z.ID == "" {
		return fmt.Errorf("zone ID must not be empty")
	}
	if z.Name == "" {
		return fmt.Errorf("zone %q: name must not be empty", z.ID)
	}
	if z.StartRoom == "" {
		return fmt.Errorf("zone %q: start_room must not be empty", z.ID)
	}
	if len(z.Rooms) == 0 {
		return fmt.Errorf("zone %q: must contain at least one room", z.ID)
	}
	if _, ok := z.Rooms[z.StartRoom]; !ok {
		return fmt.Errorf("zone %q: start_room %q not found in rooms", z.ID, z.StartRoom)
	}
	for id, room := range z.Rooms {
		if room.ID != id {
			return fmt.Errorf("zone %q: room key %q does not match room ID %q", z.ID, id, room.ID)
		}
		if room.Title == "" {
			return fmt.Errorf("zone %q: room %q: title must not be empty", z.ID, id)
		}
		for _, exit := range room.Exits {
			if exit.TargetRoom == "" {
				return fmt.Errorf("zone %q: room %q: exit %q has empty target", z.ID, id, exit.Direction)
			}
			if _, ok := z.Rooms[exit.TargetRoom]; !ok {
				return fmt.Errorf("zone %q: room %q: exit %q targets unknown room %q", z.ID, id, exit.Direction, exit.TargetRoom)
			}
		}
		for _, spawn := range room.Spawns {
			if spawn.Template == "" {
				return fmt.Errorf("zone %q: room %q: spawn with empty template", z.ID, id)
			}
			if spawn.Count < 1 {
				return fmt.Errorf("zone %q: room %q: spawn %q count must be >= 1", z.ID, id, spawn.Template)
			}
		}
	}
	return nil
}
