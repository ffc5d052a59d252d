package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/davrenn/emberfall/internal/game/world"
)

// PlayerSession tracks a connected player's in-memory game state.
// In-memory state is authoritative for gameplay; persistence is
// best-effort durability applied after the fact.
//
// Invariant: Health never drops below the combat engine's floor of -10;
// damage application clamps before writing.
type PlayerSession struct {
	// Username is the account username and the player's identity everywhere.
	Username string
	// RoomID is the current room the player occupies.
	RoomID string
	// Health is current hit points; may be negative down to the -10 floor.
	Health int
	// MaxHealth is the maximum hit points.
	MaxHealth int
	// Unconscious is set while health is in the (-10, 0] band.
	Unconscious bool
	// InCombat marks the player as engaged in an active fight.
	InCombat bool
	// Resting and Meditating are recovery modes interrupted by incoming damage.
	Resting    bool
	Meditating bool
	// Inventory holds opaque item identifiers.
	Inventory []string
	// Currency is the player's coin purse.
	Currency world.Currency
	// Outbox delivers outbound messages to the player's transport.
	Outbox *Outbox
}

// IsAlive reports whether the player has positive health.
func (s *PlayerSession) IsAlive() bool {
	return s.Health > 0
}

// Manager tracks all connected player sessions.
// All methods are safe for concurrent use. Usernames are case-insensitive.
type Manager struct {
	mu      sync.RWMutex
	players map[string]*PlayerSession // lowercase username → session
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{players: make(map[string]*PlayerSession)}
}

// AddPlayer registers a new player session in the given room.
//
// Precondition: username and roomID must be non-empty; maxHealth must be >= 1.
// Postcondition: Returns the created PlayerSession, or an error if the
// username is already connected.
func (m *Manager) AddPlayer(username, roomID string, health, maxHealth int) (*PlayerSession, error) {
	key := strings.ToLower(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[key]; exists {
		return nil, fmt.Errorf("player %q already connected", username)
	}

	sess := &PlayerSession{
		Username:  username,
		RoomID:    roomID,
		Health:    health,
		MaxHealth: maxHealth,
		Outbox:    NewOutbox(username, 64),
	}
	m.players[key] = sess
	return sess, nil
}

// RemovePlayer removes a player session and closes its outbox.
//
// Postcondition: Returns an error if the player is not found.
func (m *Manager) RemovePlayer(username string) error {
	key := strings.ToLower(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.players[key]
	if !exists {
		return fmt.Errorf("player %q not found", username)
	}
	_ = sess.Outbox.Close()
	delete(m.players, key)
	return nil
}

// GetPlayer returns the session for the given username (case-insensitive).
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (m *Manager) GetPlayer(username string) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.players[strings.ToLower(username)]
	return sess, ok
}

// PlayerCount returns the total number of connected players.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
