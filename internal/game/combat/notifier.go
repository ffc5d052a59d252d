package combat

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/entity"
	"github.com/davrenn/emberfall/internal/game/session"
	"github.com/davrenn/emberfall/internal/game/world"
)

// Color tags forwarded on messages; interpretation belongs to the transport.
const (
	ColorCombat = "red"
	ColorDeath  = "dark-red"
	ColorInfo   = "white"
)

// Notifier is the stateless messaging facade for combat: it formats and
// delivers attack, death, teleport, and broadcast notifications, respecting
// room membership and exclusion lists.
//
// Every operation is a no-op (never an error) when inputs reference
// nonexistent rooms, missing sessions, or disconnected players;
// notification failures must never abort the combat tick.
type Notifier struct {
	sessions *session.Manager
	worlds   *world.Manager
	logger   *zap.Logger
}

// NewNotifier creates a Notifier resolving connections through sessions and
// room membership through worlds.
//
// Precondition: sessions, worlds, and logger must be non-nil.
func NewNotifier(sessions *session.Manager, worlds *world.Manager, logger *zap.Logger) *Notifier {
	return &Notifier{sessions: sessions, worlds: worlds, logger: logger}
}

// NotifyAttackResult sends the first-person attack line to the target and a
// third-person broadcast to every other player in the room.
//
// Postcondition: no-op when target is nil or has no live session.
func (n *Notifier) NotifyAttackResult(attacker entity.CombatEntity, target *session.PlayerSession, roomID string, hit bool, damage int) {
	if target == nil {
		return
	}

	if hit {
		n.sendTo(target, fmt.Sprintf("%s for %d damage!", attacker.AttackText("you"), damage), ColorCombat)
		n.BroadcastRoomMessage(roomID,
			fmt.Sprintf("%s for %d damage!", attacker.AttackText(target.Username), damage),
			ColorCombat, target.Username)
		return
	}

	n.sendTo(target, fmt.Sprintf("%s and misses!", attacker.AttackText("you")), ColorCombat)
	n.BroadcastRoomMessage(roomID,
		fmt.Sprintf("%s and misses!", attacker.AttackText(target.Username)),
		ColorCombat, target.Username)
}

// NotifyPlayerDeath sends the first-person death line to the player and a
// third-person broadcast excluding them.
func (n *Notifier) NotifyPlayerDeath(target *session.PlayerSession, roomID string) {
	if target == nil {
		return
	}
	n.sendTo(target, "Your wounds overwhelm you. Everything goes dark...", ColorDeath)
	n.BroadcastRoomMessage(roomID,
		fmt.Sprintf("%s collapses lifeless to the ground!", target.Username),
		ColorDeath, target.Username)
}

// NotifyPlayerUnconscious sends the first-person unconscious line to the
// player and a third-person broadcast excluding them.
func (n *Notifier) NotifyPlayerUnconscious(target *session.PlayerSession, roomID string) {
	if target == nil {
		return
	}
	n.sendTo(target, "You crumple to the ground, unconscious.", ColorDeath)
	n.BroadcastRoomMessage(roomID,
		fmt.Sprintf("%s crumples to the ground, unconscious!", target.Username),
		ColorDeath, target.Username)
}

// NotifyPlayerTeleported informs the player of relocation, shows the
// destination's description (excluding themselves from the occupant list),
// and announces their arrival to the destination room's other occupants.
func (n *Notifier) NotifyPlayerTeleported(target *session.PlayerSession, dest *world.Room) {
	if target == nil || dest == nil {
		return
	}
	n.sendTo(target, "A strange force pulls you away...", ColorInfo)
	n.sendTo(target, n.DescribeRoom(dest, target.Username), ColorInfo)
	n.BroadcastRoomMessage(dest.ID,
		fmt.Sprintf("%s appears in a flash of light!", target.Username),
		ColorInfo, target.Username)
}

// NotifyRoomDescription sends target the rendered description of room,
// excluding themselves from the occupant list.
func (n *Notifier) NotifyRoomDescription(target *session.PlayerSession, room *world.Room) {
	if target == nil || room == nil {
		return
	}
	n.sendTo(target, n.DescribeRoom(room, target.Username), ColorInfo)
}

// BroadcastCombatStart announces that player moves to attack targetLabel,
// to every other occupant of the player's current room.
func (n *Notifier) BroadcastCombatStart(player *session.PlayerSession, targetLabel string) {
	if player == nil {
		return
	}
	n.BroadcastRoomMessage(player.RoomID,
		fmt.Sprintf("%s moves to attack %s!", player.Username, targetLabel),
		ColorCombat, player.Username)
}

// BroadcastRoomMessage fans text out to every player on roomID's roster,
// excluding the listed usernames. Occupants without a live session are
// silently skipped (e.g. mid-reconnect).
func (n *Notifier) BroadcastRoomMessage(roomID, text, color string, exclude ...string) {
	room, ok := n.worlds.GetRoom(roomID)
	if !ok {
		n.logger.Debug("broadcast to unknown room skipped", zap.String("room", roomID))
		return
	}

	for _, username := range room.Players {
		if excluded(username, exclude) {
			continue
		}
		sess, ok := n.sessions.GetPlayer(username)
		if !ok {
			continue
		}
		n.sendTo(sess, text, color)
	}
}

// DescribeRoom renders a room description: title, body, occupants (players
// except excludeUsername; NPC listing belongs to the look command), and
// visible exits.
func (n *Notifier) DescribeRoom(room *world.Room, excludeUsername string) string {
	var b strings.Builder
	b.WriteString(room.Title)
	b.WriteString("\n")
	b.WriteString(room.Description)

	var others []string
	for _, username := range room.Players {
		if strings.EqualFold(username, excludeUsername) {
			continue
		}
		others = append(others, username)
	}
	if len(others) > 0 {
		b.WriteString("\nAlso here: ")
		b.WriteString(strings.Join(others, ", "))
	}

	if len(room.Exits) > 0 {
		dirs := make([]string, 0, len(room.Exits))
		for _, exit := range room.Exits {
			dirs = append(dirs, exit.Direction)
		}
		b.WriteString("\nExits: ")
		b.WriteString(strings.Join(dirs, ", "))
	}
	return b.String()
}

// sendTo delivers one line to sess, dropping it if the outbox refuses.
func (n *Notifier) sendTo(sess *session.PlayerSession, text, color string) {
	if sess == nil || sess.Outbox == nil {
		return
	}
	if err := sess.Outbox.Send(session.Message{Text: text, Color: color}); err != nil {
		n.logger.Debug("dropping message for player",
			zap.String("player", sess.Username),
			zap.Error(err),
		)
	}
}

func excluded(username string, exclude []string) bool {
	for _, ex := range exclude {
		if strings.EqualFold(username, ex) {
			return true
		}
	}
	return false
}
