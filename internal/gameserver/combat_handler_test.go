package gameserver_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/combat"
	"github.com/davrenn/emberfall/internal/game/entity"
	"github.com/davrenn/emberfall/internal/game/event"
	"github.com/davrenn/emberfall/internal/game/player"
	"github.com/davrenn/emberfall/internal/game/rng"
	"github.com/davrenn/emberfall/internal/game/session"
	"github.com/davrenn/emberfall/internal/game/world"
	"github.com/davrenn/emberfall/internal/gameserver"
)

type scriptedSrc struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
}

func (s *scriptedSrc) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v >= n {
		return n - 1
	}
	return v
}

func (s *scriptedSrc) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

type recordingStore struct {
	mu    sync.Mutex
	stats []player.StatsUpdate
}

func (s *recordingStore) GetUser(ctx context.Context, username string) (*player.Player, error) {
	return nil, nil
}

func (s *recordingStore) UpdateUserStats(ctx context.Context, username string, upd player.StatsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, upd)
	return nil
}

func (s *recordingStore) UpdateUserInventory(ctx context.Context, username string, items []string, cur world.Currency) error {
	return nil
}

// rig wires the full combat stack over a two-room world with the handler on
// top, the same shape main assembles.
type rig struct {
	handler   *gameserver.CombatHandler
	processor *combat.Processor
	tracker   *combat.EntityTracker
	sessions  *session.Manager
	worlds    *world.Manager
	entities  *entity.Manager
	templates *entity.Registry
	store     *recordingStore
	bus       *event.Bus
	clock     *time.Time
}

type testingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	FailNow()
}

func newRig(t testingT, src rng.Source) *rig {
	t.Helper()

	zone := &world.Zone{
		ID:        "town",
		Name:      "Test Town",
		StartRoom: "town:square",
		Rooms: map[string]*world.Room{
			"town:square": {
				ID:    "town:square",
				Title: "The Town Square",
				Flags: map[string]bool{world.FlagSafe: true},
				Exits: []world.Exit{{Direction: "south", TargetRoom: "town:cave"}},
			},
			"town:cave": {
				ID:    "town:cave",
				Title: "A Dank Cave",
				Exits: []world.Exit{{Direction: "north", TargetRoom: "town:square"}},
			},
		},
	}
	worlds, err := world.NewManager([]*world.Zone{zone})
	require.NoError(t, err)

	logger := zap.NewNop()
	sessions := session.NewManager()
	templates := entity.NewRegistry()
	entities := entity.NewManager()
	tracker := combat.NewEntityTracker(entities, templates, logger)
	notifier := combat.NewNotifier(sessions, worlds, logger)
	store := &recordingStore{}
	bus := event.NewBus(logger)
	death := combat.NewPlayerDeathHandler(worlds, store, notifier, bus, logger)
	processor := combat.NewProcessor(tracker, notifier, sessions, worlds, store, death, bus,
		src, combat.DefaultHitChance, logger)
	factory := combat.NewCommandFactory(notifier, store, death, bus, src,
		combat.DefaultHitChance, combat.DefaultFleeChance, 2, 6, logger)

	now := time.Now()
	clock := &now
	handler := gameserver.NewCombatHandler(processor, tracker, factory, death, notifier,
		sessions, worlds, entities, store, src, func() time.Time { return *clock }, logger)

	return &rig{
		handler:   handler,
		processor: processor,
		tracker:   tracker,
		sessions:  sessions,
		worlds:    worlds,
		entities:  entities,
		templates: templates,
		store:     store,
		bus:       bus,
		clock:     clock,
	}
}

func (r *rig) addPlayer(t testingT, username, roomID string, health, maxHealth int) *session.PlayerSession {
	t.Helper()
	sess, err := r.sessions.AddPlayer(username, roomID, health, maxHealth)
	require.NoError(t, err)
	require.NoError(t, r.worlds.AddPlayerToRoom(roomID, username))
	return sess
}

func (r *rig) spawnGoblin(t testingT, roomID string, damage, maxHealth int) *entity.NPC {
	t.Helper()
	tmpl, ok := r.templates.Get("goblin")
	if !ok {
		tmpl = &entity.Template{
			ID:          "goblin",
			Name:        "a goblin",
			MaxHealth:   maxHealth,
			MinDamage:   damage,
			MaxDamage:   damage,
			Hostile:     true,
			AttackTexts: []string{"The goblin slashes wildly at %s"},
		}
		r.templates.Register(tmpl)
	}
	npc, err := r.entities.Spawn(tmpl, roomID)
	require.NoError(t, err)
	return npc
}

func drainOutbox(sess *session.PlayerSession) []session.Message {
	var msgs []session.Message
	for {
		select {
		case m, ok := <-sess.Outbox.Messages():
			if !ok {
				return msgs
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}
