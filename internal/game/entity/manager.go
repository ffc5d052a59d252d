package entity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Manager tracks all live NPC instances by ID and by room.
// All methods are safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*NPC            // instanceID → NPC
	roomSets  map[string]map[string]bool // roomID → set of instanceIDs
}

// NewManager creates an empty NPC instance Manager.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[string]*NPC),
		roomSets:  make(map[string]map[string]bool),
	}
}

// Spawn creates a new NPC from tmpl and places it in roomID.
//
// Precondition: tmpl must be non-nil; roomID must be non-empty.
// Postcondition: Returns a new NPC with a unique instance ID registered in roomID.
func (m *Manager) Spawn(tmpl *Template, roomID string) (*NPC, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("entity.Manager.Spawn: tmpl must not be nil")
	}
	if roomID == "" {
		return nil, fmt.Errorf("entity.Manager.Spawn: roomID must not be empty")
	}

	id := fmt.Sprintf("%s-%s", tmpl.ID, uuid.New().String())
	inst := NewInstance(id, tmpl, roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.instances[id] = inst
	if m.roomSets[roomID] == nil {
		m.roomSets[roomID] = make(map[string]bool)
	}
	m.roomSets[roomID][id] = true

	return inst, nil
}

// Remove deletes an instance by ID, pruning empty room sets.
//
// Postcondition: Returns an error if the instance is not found.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return fmt.Errorf("npc instance %q not found", id)
	}

	if rs, ok := m.roomSets[inst.RoomID]; ok {
		delete(rs, id)
		if len(rs) == 0 {
			delete(m.roomSets, inst.RoomID)
		}
	}
	delete(m.instances, id)
	return nil
}

// Get returns the instance with the given ID.
//
// Postcondition: Returns (inst, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id string) (*NPC, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// InstancesInRoom returns a snapshot of all live instances in roomID.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) InstancesInRoom(roomID string) []*NPC {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.roomSets[roomID]
	if !ok {
		return []*NPC{}
	}

	out := make([]*NPC, 0, len(ids))
	for id := range ids {
		if inst, ok := m.instances[id]; ok {
			out = append(out, inst)
		}
	}
	return out
}

// FindInRoom resolves ref against the instances in roomID: by instance ID
// first, then by template ID, then by case-insensitive display name.
//
// Postcondition: Returns nil if nothing in the room matches.
func (m *Manager) FindInRoom(roomID, ref string) *NPC {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.roomSets[roomID]
	if !ok {
		return nil
	}

	if ids[ref] {
		return m.instances[ref]
	}
	for id := range ids {
		inst, ok := m.instances[id]
		if !ok {
			continue
		}
		if inst.TemplateID == ref {
			return inst
		}
	}
	for id := range ids {
		inst, ok := m.instances[id]
		if !ok {
			continue
		}
		if strings.EqualFold(inst.Name(), ref) {
			return inst
		}
	}
	return nil
}
