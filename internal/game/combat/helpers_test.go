package combat_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/combat"
	"github.com/davrenn/emberfall/internal/game/entity"
	"github.com/davrenn/emberfall/internal/game/event"
	"github.com/davrenn/emberfall/internal/game/player"
	"github.com/davrenn/emberfall/internal/game/rng"
	"github.com/davrenn/emberfall/internal/game/session"
	"github.com/davrenn/emberfall/internal/game/world"
)

// testingT is the slice of testing.TB the helpers need; *rapid.T satisfies
// it too, so property tests can share the fixtures.
type testingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	FailNow()
}

// fixedSrc returns the same values on every draw.
type fixedSrc struct {
	n int
	f float64
}

func (s fixedSrc) Intn(n int) int {
	if s.n >= n {
		return n - 1
	}
	return s.n
}

func (s fixedSrc) Float64() float64 { return s.f }

// seqSrc replays scripted draws and falls back to zero when exhausted.
type seqSrc struct {
	ints   []int
	floats []float64
}

func (s *seqSrc) Intn(n int) int {
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

func (s *seqSrc) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

// fakeUserStore records persistence calls; safe for the fire-and-forget
// goroutines the engine spawns.
type fakeUserStore struct {
	mu               sync.Mutex
	statsUpdates     []player.StatsUpdate
	inventoryUpdates int
	err              error
}

func (s *fakeUserStore) GetUser(ctx context.Context, username string) (*player.Player, error) {
	return nil, nil
}

func (s *fakeUserStore) UpdateUserStats(ctx context.Context, username string, upd player.StatsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsUpdates = append(s.statsUpdates, upd)
	return s.err
}

func (s *fakeUserStore) UpdateUserInventory(ctx context.Context, username string, items []string, cur world.Currency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventoryUpdates++
	return s.err
}

func (s *fakeUserStore) statsUpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statsUpdates)
}

func (s *fakeUserStore) lastStatsUpdate() (player.StatsUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statsUpdates) == 0 {
		return player.StatsUpdate{}, false
	}
	return s.statsUpdates[len(s.statsUpdates)-1], true
}

func (s *fakeUserStore) inventoryUpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventoryUpdates
}

// engine bundles a fully wired combat engine over a two-room world: a safe
// starting square and an unsafe cave.
type engine struct {
	worlds    *world.Manager
	sessions  *session.Manager
	entities  *entity.Manager
	templates *entity.Registry
	tracker   *combat.EntityTracker
	notifier  *combat.Notifier
	store     *fakeUserStore
	bus       *event.Bus
	death     *combat.PlayerDeathHandler
}

func newEngine(t testingT) *engine {
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
			},
			"town:cave": {
				ID:    "town:cave",
				Title: "A Dank Cave",
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
	store := &fakeUserStore{}
	bus := event.NewBus(logger)
	death := combat.NewPlayerDeathHandler(worlds, store, notifier, bus, logger)

	return &engine{
		worlds:    worlds,
		sessions:  sessions,
		entities:  entities,
		templates: templates,
		tracker:   tracker,
		notifier:  notifier,
		store:     store,
		bus:       bus,
		death:     death,
	}
}

func (e *engine) newProcessor(t testingT, src rng.Source) *combat.Processor {
	t.Helper()
	return combat.NewProcessor(
		e.tracker, e.notifier, e.sessions, e.worlds, e.store, e.death, e.bus,
		src, combat.DefaultHitChance, zap.NewNop(),
	)
}

func (e *engine) addPlayer(t testingT, username, roomID string, health, maxHealth int) *session.PlayerSession {
	t.Helper()
	sess, err := e.sessions.AddPlayer(username, roomID, health, maxHealth)
	require.NoError(t, err)
	require.NoError(t, e.worlds.AddPlayerToRoom(roomID, username))
	return sess
}

func (e *engine) spawnGoblin(t testingT, roomID string, damage int) *entity.NPC {
	t.Helper()
	tmpl := &entity.Template{
		ID:          "goblin",
		Name:        "a goblin",
		MaxHealth:   30,
		MinDamage:   damage,
		MaxDamage:   damage,
		Hostile:     true,
		AttackTexts: []string{"The goblin slashes wildly at %s"},
	}
	e.templates.Register(tmpl)
	npc, err := e.entities.Spawn(tmpl, roomID)
	require.NoError(t, err)
	return npc
}

// drainOutbox collects every message currently buffered for the session.
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
