package combat

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/entity"
)

// entityIDSeparator joins room and entity name into a composite entity ID.
const entityIDSeparator = "::"

// EntityID returns the deterministic composite key identifying an entity
// instance across components.
//
// Postcondition: Returns "<roomID>::<entityName>".
func EntityID(roomID, entityName string) string {
	return roomID + entityIDSeparator + entityName
}

// SplitEntityID splits a composite entity ID back into room and entity name.
//
// Postcondition: Returns ("", "", false) when id is not a composite key.
func SplitEntityID(id string) (roomID, entityName string, ok bool) {
	roomID, entityName, ok = strings.Cut(id, entityIDSeparator)
	if !ok || roomID == "" || entityName == "" {
		return "", "", false
	}
	return roomID, entityName, true
}

// EntityTracker is the registry mapping (room, entity name) to live
// combat-capable entities. It also tracks which usernames target a given
// entity and which entities are flagged "in active combat" per room.
//
// All methods are safe for concurrent use, though in practice mutation
// arrives serialized through the combat engine lock.
type EntityTracker struct {
	mu sync.RWMutex
	// combatRooms: roomID → set of entity names registered as in-combat.
	combatRooms map[string]map[string]bool
	// shared: entityID → cached resolved entity.
	shared map[string]entity.CombatEntity
	// targeters: entityID → set of usernames targeting the entity.
	targeters map[string]map[string]bool

	entities  *entity.Manager
	templates *entity.Registry
	logger    *zap.Logger
}

// NewEntityTracker creates an EntityTracker resolving entities against the
// given instance manager and template registry.
//
// Precondition: entities, templates, and logger must be non-nil.
func NewEntityTracker(entities *entity.Manager, templates *entity.Registry, logger *zap.Logger) *EntityTracker {
	return &EntityTracker{
		combatRooms: make(map[string]map[string]bool),
		shared:      make(map[string]entity.CombatEntity),
		targeters:   make(map[string]map[string]bool),
		entities:    entities,
		templates:   templates,
		logger:      logger,
	}
}

// AddEntityToCombat registers entityName as in-combat for roomID.
// Idempotent set membership.
func (t *EntityTracker) AddEntityToCombat(roomID, entityName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.combatRooms[roomID] == nil {
		t.combatRooms[roomID] = make(map[string]bool)
	}
	t.combatRooms[roomID][entityName] = true
}

// RemoveEntityFromCombat removes entityName from roomID's combat set.
//
// Postcondition: removing the last entity deletes the room's bookkeeping
// entry entirely (no leaked empty sets).
func (t *EntityTracker) RemoveEntityFromCombat(roomID, entityName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.combatRooms[roomID]
	if !ok {
		return
	}
	delete(set, entityName)
	if len(set) == 0 {
		delete(t.combatRooms, roomID)
	}
}

// CombatEntitiesInRoom returns a snapshot of the entity names registered as
// in-combat for roomID. Order is unspecified.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (t *EntityTracker) CombatEntitiesInRoom(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.combatRooms[roomID]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out
}

// CombatRoomIDs returns a snapshot of all rooms with registered combat
// entities.
func (t *EntityTracker) CombatRoomIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.combatRooms))
	for roomID := range t.combatRooms {
		out = append(out, roomID)
	}
	return out
}

// IsEntityInCombat reports whether entityName is registered for roomID.
func (t *EntityTracker) IsEntityInCombat(roomID, entityName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.combatRooms[roomID][entityName]
}

// SharedEntity resolves the live combat entity for (roomID, entityName).
// Resolution order: cached entry (unless dead), then the room's live NPC
// registry (instance ID, template ID, display name), then a placeholder
// synthesized from template data or minimal defaults so callers never
// observe nil for a known name. A stale dead cache entry is evicted and
// re-resolved rather than returned.
//
// Postcondition: Returns a non-nil entity; placeholder synthesis is logged
// as a warning (missing templates are a data issue, not an engine fault).
func (t *EntityTracker) SharedEntity(roomID, entityName string) entity.CombatEntity {
	id := EntityID(roomID, entityName)

	t.mu.RLock()
	cached, ok := t.shared[id]
	t.mu.RUnlock()
	if ok && cached.IsAlive() {
		return cached
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the write lock; another goroutine may have resolved.
	if cached, ok := t.shared[id]; ok {
		if cached.IsAlive() {
			return cached
		}
		delete(t.shared, id)
	}

	if inst := t.entities.FindInRoom(roomID, entityName); inst != nil {
		t.shared[id] = inst
		return inst
	}

	resolved := t.synthesizePlaceholder(id, roomID, entityName)
	t.shared[id] = resolved
	return resolved
}

// synthesizePlaceholder builds an entity for a name with no live instance.
// Caller must hold t.mu.
func (t *EntityTracker) synthesizePlaceholder(id, roomID, entityName string) entity.CombatEntity {
	if tmpl, ok := t.templates.Get(entityName); ok {
		t.logger.Warn("no live instance for entity, synthesizing from template",
			zap.String("room", roomID),
			zap.String("entity", entityName),
		)
		return entity.NewInstance(id, tmpl, roomID)
	}
	t.logger.Warn("no template for entity, synthesizing placeholder",
		zap.String("room", roomID),
		zap.String("entity", entityName),
	)
	return entity.NewPlaceholder(id, entityName, roomID)
}

// CleanupDeadEntity evicts the cached entity for (roomID, entityName) so a
// later SharedEntity call re-resolves from the room's live registry
// (picking up, e.g., a respawned instance with a new ID).
func (t *EntityTracker) CleanupDeadEntity(roomID, entityName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.shared, EntityID(roomID, entityName))
}

// EntityIsDead reports whether the entity identified by the composite ID is
// dead. An unknown or malformed ID is treated as dead (fail-safe default).
func (t *EntityTracker) EntityIsDead(entityID string) bool {
	roomID, entityName, ok := SplitEntityID(entityID)
	if !ok {
		return true
	}

	t.mu.RLock()
	cached, found := t.shared[entityID]
	t.mu.RUnlock()
	if found {
		return !cached.IsAlive()
	}

	if inst := t.entities.FindInRoom(roomID, entityName); inst != nil {
		return !inst.IsAlive()
	}
	return true
}

// TrackTargeter records that username is targeting entityID.
// Set semantics; callers must balance TrackTargeter/RemoveTargeter since
// entries are never silently garbage-collected.
func (t *EntityTracker) TrackTargeter(entityID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.targeters[entityID] == nil {
		t.targeters[entityID] = make(map[string]bool)
	}
	t.targeters[entityID][username] = true
}

// RemoveTargeter removes username from entityID's targeter set, pruning
// empty sets.
func (t *EntityTracker) RemoveTargeter(entityID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.targeters[entityID]
	if !ok {
		return
	}
	delete(set, username)
	if len(set) == 0 {
		delete(t.targeters, entityID)
	}
}

// Targeters returns a snapshot of the usernames currently targeting entityID.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (t *EntityTracker) Targeters(entityID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.targeters[entityID]
	out := make([]string, 0, len(set))
	for username := range set {
		out = append(out, username)
	}
	return out
}
