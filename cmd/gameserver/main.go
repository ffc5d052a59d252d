// Package main provides the Emberfall game server binary.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/config"
	"github.com/davrenn/emberfall/internal/game/combat"
	"github.com/davrenn/emberfall/internal/game/entity"
	"github.com/davrenn/emberfall/internal/game/event"
	"github.com/davrenn/emberfall/internal/game/rng"
	"github.com/davrenn/emberfall/internal/game/session"
	"github.com/davrenn/emberfall/internal/game/world"
	"github.com/davrenn/emberfall/internal/gameserver"
	"github.com/davrenn/emberfall/internal/observability"
	"github.com/davrenn/emberfall/internal/server"
	"github.com/davrenn/emberfall/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	zonesDir := flag.String("zones", "", "path to zone YAML files directory (overrides config)")
	npcsDir := flag.String("npcs-dir", "", "path to NPC YAML templates directory (overrides config)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *zonesDir != "" {
		cfg.World.ZonesDir = *zonesDir
	}
	if *npcsDir != "" {
		cfg.World.NPCsDir = *npcsDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("server", cfg.Server.Name),
		zap.Duration("tick_interval", cfg.Combat.TickInterval),
	)

	src := rng.NewCryptoSource()

	// Load world
	zoneStart := time.Now()
	zones, err := world.LoadZonesFromDir(cfg.World.ZonesDir)
	if err != nil {
		logger.Fatal("loading zones", zap.Error(err))
	}
	worldMgr, err := world.NewManager(zones)
	if err != nil {
		logger.Fatal("creating world manager", zap.Error(err))
	}
	logger.Info("world loaded",
		zap.Int("zones", worldMgr.ZoneCount()),
		zap.Int("rooms", worldMgr.RoomCount()),
		zap.Duration("elapsed", time.Since(zoneStart)),
	)

	// Connect to PostgreSQL for player persistence
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	userRepo := postgres.NewUserRepository(pool.DB())

	sessMgr := session.NewManager()

	// Load NPC templates and spawn initial instances
	templates, err := entity.LoadTemplates(cfg.World.NPCsDir)
	if err != nil {
		logger.Fatal("loading npc templates", zap.Error(err))
	}
	registry := entity.NewRegistry()
	for _, tmpl := range templates {
		registry.Register(tmpl)
	}
	logger.Info("loaded npc templates", zap.Int("count", len(templates)))

	entityMgr := entity.NewManager()
	spawned := 0
	for _, room := range worldMgr.AllRooms() {
		for _, sc := range room.Spawns {
			tmpl, ok := registry.Get(sc.Template)
			if !ok {
				logger.Fatal("spawn references unknown npc template",
					zap.String("room", room.ID),
					zap.String("template", sc.Template),
				)
			}
			for i := 0; i < sc.Count; i++ {
				if _, err := entityMgr.Spawn(tmpl, room.ID); err != nil {
					logger.Fatal("spawning npc",
						zap.String("room", room.ID),
						zap.String("template", sc.Template),
						zap.Error(err),
					)
				}
				spawned++
			}
		}
	}
	logger.Info("initial NPC population complete", zap.Int("spawned", spawned))

	// Combat event bus with a logging subscriber per topic.
	bus := event.NewBus(logger)
	for _, topic := range []event.Topic{
		event.TopicCombatStart,
		event.TopicAttack,
		event.TopicFlee,
		event.TopicUnconscious,
		event.TopicDeath,
		event.TopicRespawn,
	} {
		topic := topic
		bus.Subscribe(topic, func(ev event.Event) {
			logger.Debug("combat event",
				zap.String("topic", string(ev.Topic)),
				zap.String("room", ev.RoomID),
				zap.String("actor", ev.Actor),
				zap.String("target", ev.Target),
				zap.Int("damage", ev.Damage),
				zap.Bool("hit", ev.Hit),
				zap.Int64("round", ev.Round),
			)
		})
	}

	// Assemble the combat engine.
	notifier := combat.NewNotifier(sessMgr, worldMgr, logger)
	tracker := combat.NewEntityTracker(entityMgr, registry, logger)
	death := combat.NewPlayerDeathHandler(worldMgr, userRepo, notifier, bus, logger)
	processor := combat.NewProcessor(
		tracker, notifier, sessMgr, worldMgr, userRepo, death, bus,
		src, cfg.Combat.HitChance, logger,
	)
	factory := combat.NewCommandFactory(
		notifier, userRepo, death, bus, src,
		cfg.Combat.HitChance, cfg.Combat.FleeChance,
		cfg.Combat.PlayerMinDamage, cfg.Combat.PlayerMaxDamage,
		logger,
	)
	combatHandler := gameserver.NewCombatHandler(
		processor, tracker, factory, death, notifier,
		sessMgr, worldMgr, entityMgr, userRepo,
		src, nil, logger,
	)

	ticker := gameserver.NewCombatTicker(cfg.Combat.TickInterval, combatHandler, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("combat-ticker", ticker)

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
