package world

import (
	"fmt"
	"sync"
)

// Manager provides thread-safe access to the loaded world state.
// It indexes rooms across all zones for O(1) lookup by room ID.
//
// Room pointers returned by GetRoom share state with the Manager; all
// mutation of room rosters, items, and currency must go through the
// Manager's methods so the lock discipline holds.
type Manager struct {
	mu        sync.RWMutex
	zones     map[string]*Zone
	rooms     map[string]*Room
	startRoom string
}

// NewManager creates a Manager from the given zones.
//
// Precondition: zones must contain at least one zone; the first zone's start
// room is the global start (respawn) room.
// Postcondition: Returns a Manager with all rooms indexed by ID, or an error
// on duplicate zone or room IDs.
func NewManager(zones []*Zone) (*Manager, error) {
	m := &Manager{
		zones: make(map[string]*Zone, len(zones)),
		rooms: make(map[string]*Room),
	}

	for _, z := range zones {
		if _, exists := m.zones[z.ID]; exists {
			return nil, fmt.Errorf("duplicate zone ID: %q", z.ID)
		}
		m.zones[z.ID] = z
		for id, room := range z.Rooms {
			if existing, exists := m.rooms[id]; exists {
				return nil, fmt.Errorf("duplicate room ID %q: in zone %q and %q", id, existing.ZoneID, z.ID)
			}
			m.rooms[id] = room
		}
	}

	if len(zones) > 0 {
		m.startRoom = zones[0].StartRoom
	}

	return m, nil
}

// GetRoom returns the room with the given ID.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// AllRooms returns a snapshot slice of every room in the world.
//
// Postcondition: Returns a non-nil slice; mutating the slice does not affect
// the index (the rooms themselves are shared).
func (m *Manager) AllRooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// StartingRoomID returns the ID of the global start (respawn) room.
func (m *Manager) StartingRoomID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startRoom
}

// AddPlayerToRoom appends username to the roster of roomID.
//
// Postcondition: Returns an error if the room does not exist; otherwise the
// player appears exactly once on the roster.
func (m *Manager) AddPlayerToRoom(roomID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %q not found", roomID)
	}
	room.AddPlayer(username)
	return nil
}

// RemovePlayerFromRoom removes username from the roster of roomID.
// Removing from an unknown room is a no-op.
func (m *Manager) RemovePlayerFromRoom(roomID, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[roomID]; ok {
		room.RemovePlayer(username)
	}
}

// DropItems appends items to roomID's floor container.
//
// Postcondition: Returns an error if the room does not exist.
func (m *Manager) DropItems(roomID string, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %q not found", roomID)
	}
	room.Items = append(room.Items, items...)
	return nil
}

// AddCurrency merges cur into roomID's coin pile.
//
// Postcondition: Returns an error if the room does not exist.
func (m *Manager) AddCurrency(roomID string, cur Currency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %q not found", roomID)
	}
	room.Currency = room.Currency.Add(cur)
	return nil
}

// RoomCount returns the total number of rooms across all zones.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// ZoneCount returns the number of loaded zones.
func (m *Manager) ZoneCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.zones)
}
