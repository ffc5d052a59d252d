package combat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/event"
	"github.com/davrenn/emberfall/internal/game/player"
	"github.com/davrenn/emberfall/internal/game/session"
	"github.com/davrenn/emberfall/internal/game/world"
)

// persistTimeout bounds each fire-and-forget persistence write.
const persistTimeout = 5 * time.Second

// PlayerDeathHandler applies death and unconsciousness consequences to a
// player: inventory and currency drop, state flagging, respawn teleport.
//
// In-memory state is mutated synchronously and is authoritative;
// persistence writes are fire-and-forget and never roll gameplay back.
type PlayerDeathHandler struct {
	worlds   *world.Manager
	users    UserStore
	notifier *Notifier
	bus      *event.Bus
	logger   *zap.Logger
}

// NewPlayerDeathHandler creates a PlayerDeathHandler.
//
// Precondition: all arguments must be non-nil.
func NewPlayerDeathHandler(worlds *world.Manager, users UserStore, notifier *Notifier, bus *event.Bus, logger *zap.Logger) *PlayerDeathHandler {
	return &PlayerDeathHandler{
		worlds:   worlds,
		users:    users,
		notifier: notifier,
		bus:      bus,
		logger:   logger,
	}
}

// HandlePlayerHealth routes sess to the death or unconscious path based on
// its health band. No-op while health is positive.
//
// Postcondition: health <= -10 → death path (inventory drop + respawn at
// full health); -10 < health <= 0 → unconscious path (flag set, no
// relocation).
func (h *PlayerDeathHandler) HandlePlayerHealth(sess *session.PlayerSession, roomID string) {
	if sess == nil || sess.Health > UnconsciousThreshold {
		return
	}
	if IsDeadHealth(sess.Health) {
		h.handleDeath(sess, roomID)
		return
	}
	// Already-unconscious players keep taking hits until the floor; only
	// the transition itself is announced and persisted.
	if !sess.Unconscious {
		h.handleUnconscious(sess, roomID)
	}
}

// handleDeath runs the full death sequence. The inventory drop happens
// before the relocation so items land in the room the player died in.
func (h *PlayerDeathHandler) handleDeath(sess *session.PlayerSession, roomID string) {
	h.notifier.NotifyPlayerDeath(sess, roomID)
	h.dropInventory(sess, roomID)

	startID := h.worlds.StartingRoomID()
	h.worlds.RemovePlayerFromRoom(roomID, sess.Username)
	if err := h.worlds.AddPlayerToRoom(startID, sess.Username); err != nil {
		h.logger.Warn("respawn room missing, player left roomless",
			zap.String("player", sess.Username),
			zap.String("room", startID),
			zap.Error(err),
		)
	}
	sess.RoomID = startID
	sess.Health = sess.MaxHealth
	sess.Unconscious = false
	sess.InCombat = false

	// Location, health, and unconscious land in one update call.
	h.persistAsync(sess.Username, "death respawn", func(ctx context.Context) error {
		return h.users.UpdateUserStats(ctx, sess.Username, player.StatsUpdate{
			Health:      player.IntPtr(sess.MaxHealth),
			Unconscious: player.BoolPtr(false),
			RoomID:      player.StringPtr(startID),
		})
	})

	if dest, ok := h.worlds.GetRoom(startID); ok {
		h.notifier.NotifyPlayerTeleported(sess, dest)
	}

	h.bus.Publish(event.Event{
		Topic:  event.TopicDeath,
		RoomID: roomID,
		Actor:  sess.Username,
	})
	h.bus.Publish(event.Event{
		Topic:  event.TopicRespawn,
		RoomID: startID,
		Actor:  sess.Username,
	})
}

// handleUnconscious flags the player unconscious. Movement and actions are
// blocked by the active combat state, not here.
func (h *PlayerDeathHandler) handleUnconscious(sess *session.PlayerSession, roomID string) {
	h.notifier.NotifyPlayerUnconscious(sess, roomID)
	sess.Unconscious = true

	h.persistAsync(sess.Username, "unconscious flag", func(ctx context.Context) error {
		return h.users.UpdateUserStats(ctx, sess.Username, player.StatsUpdate{
			Unconscious: player.BoolPtr(true),
		})
	})

	h.bus.Publish(event.Event{
		Topic:  event.TopicUnconscious,
		RoomID: roomID,
		Actor:  sess.Username,
	})
}

// dropInventory moves the player's items and currency into the death room,
// zeroing both on the player, and persists the emptied inventory. Items and
// currency are handled independently; either may be empty.
func (h *PlayerDeathHandler) dropInventory(sess *session.PlayerSession, roomID string) {
	items := sess.Inventory
	currency := sess.Currency

	if len(items) > 0 {
		dropped := make([]world.Item, 0, len(items))
		names := ""
		for i, name := range items {
			dropped = append(dropped, world.Item{InstanceID: uuid.New().String(), Name: name})
			if i > 0 {
				names += ", "
			}
			names += name
		}
		if err := h.worlds.DropItems(roomID, dropped); err != nil {
			h.logger.Warn("dropping corpse items failed",
				zap.String("player", sess.Username),
				zap.String("room", roomID),
				zap.Error(err),
			)
		} else {
			h.notifier.BroadcastRoomMessage(roomID,
				fmt.Sprintf("%s's corpse spills its belongings: %s", sess.Username, names),
				ColorInfo, sess.Username)
		}
	}

	if !currency.IsZero() {
		if err := h.worlds.AddCurrency(roomID, currency); err != nil {
			h.logger.Warn("dropping corpse currency failed",
				zap.String("player", sess.Username),
				zap.String("room", roomID),
				zap.Error(err),
			)
		} else {
			h.notifier.BroadcastRoomMessage(roomID,
				fmt.Sprintf("Coins scatter from %s's corpse: %s", sess.Username, currency),
				ColorInfo, sess.Username)
		}
	}

	sess.Inventory = nil
	sess.Currency = world.Currency{}

	h.persistAsync(sess.Username, "emptied inventory", func(ctx context.Context) error {
		return h.users.UpdateUserInventory(ctx, sess.Username, nil, world.Currency{})
	})
}

// persistAsync runs fn on its own goroutine with a bounded context.
// Failures are logged and never affect in-memory state.
func (h *PlayerDeathHandler) persistAsync(username, what string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			h.logger.Warn("persisting player state failed",
				zap.String("player", username),
				zap.String("update", what),
				zap.Error(err),
			)
		}
	}()
}
