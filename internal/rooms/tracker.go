// ABOUTME: Process-wide tracker of the rooms the bot currently occupies
// ABOUTME: Initialized from the homeserver's joined-rooms list, updated by member events

package rooms

import (
	"log/slog"
	"sync"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Tracker owns the set of rooms the bot is joined to. It is rebuilt from
// the homeserver's authoritative list at startup and then maintained
// incrementally from membership events concerning the bot itself. The
// webhook endpoint consults it to authorize delivery targets.
type Tracker struct {
	mu     sync.RWMutex
	joined map[id.RoomID]struct{}
	botID  id.UserID
	logger *slog.Logger
}

// NewTracker creates a tracker for the given bot user ID.
func NewTracker(botID id.UserID, logger *slog.Logger) *Tracker {
	return &Tracker{
		joined: make(map[id.RoomID]struct{}),
		botID:  botID,
		logger: logger.With("component", "rooms"),
	}
}

// Init replaces the tracked set with the authoritative joined-rooms list.
func (t *Tracker) Init(roomIDs []id.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.joined = make(map[id.RoomID]struct{}, len(roomIDs))
	for _, roomID := range roomIDs {
		t.joined[roomID] = struct{}{}
	}
	t.logger.Info("initialized joined rooms", "count", len(roomIDs))
}

// Update applies a membership event. Events whose state key is not the
// bot's own user ID are ignored. JOIN adds the room; LEAVE and BAN remove
// it. Removing a room that is not in the set is a no-op.
func (t *Tracker) Update(evt *event.Event) {
	if evt.GetStateKey() != t.botID.String() {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MemberEventContent)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch content.Membership {
	case event.MembershipJoin:
		t.joined[evt.RoomID] = struct{}{}
		t.logger.Info("joined room", "room", evt.RoomID.String())
	case event.MembershipLeave, event.MembershipBan:
		delete(t.joined, evt.RoomID)
		t.logger.Info("left room", "room", evt.RoomID.String())
	}
}

// Contains reports whether the bot is currently in the room.
func (t *Tracker) Contains(roomID id.RoomID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.joined[roomID]
	return ok
}
