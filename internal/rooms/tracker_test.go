// ABOUTME: Tests for the joined-rooms tracker
// ABOUTME: Covers init, join/leave/ban transitions, and idempotent removal

package rooms

import (
	"log/slog"
	"testing"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const botID = id.UserID("@gitea:example.com")

func memberEvent(roomID id.RoomID, stateKey string, membership event.Membership) *event.Event {
	return &event.Event{
		RoomID:   roomID,
		StateKey: &stateKey,
		Content: event.Content{
			Parsed: &event.MemberEventContent{Membership: membership},
		},
	}
}

func TestTracker_Init(t *testing.T) {
	tr := NewTracker(botID, slog.Default())
	tr.Init([]id.RoomID{"!a:example.com", "!b:example.com"})

	if !tr.Contains("!a:example.com") {
		t.Error("expected !a:example.com to be tracked")
	}
	if !tr.Contains("!b:example.com") {
		t.Error("expected !b:example.com to be tracked")
	}
	if tr.Contains("!c:example.com") {
		t.Error("did not expect !c:example.com to be tracked")
	}
}

func TestTracker_InitReplaces(t *testing.T) {
	tr := NewTracker(botID, slog.Default())
	tr.Init([]id.RoomID{"!old:example.com"})
	tr.Init([]id.RoomID{"!new:example.com"})

	if tr.Contains("!old:example.com") {
		t.Error("Init should replace the previous set")
	}
	if !tr.Contains("!new:example.com") {
		t.Error("expected !new:example.com to be tracked")
	}
}

func TestTracker_Join(t *testing.T) {
	tr := NewTracker(botID, slog.Default())
	tr.Update(memberEvent("!a:example.com", botID.String(), event.MembershipJoin))

	if !tr.Contains("!a:example.com") {
		t.Error("expected room to be tracked after join")
	}
}

func TestTracker_Leave(t *testing.T) {
	tr := NewTracker(botID, slog.Default())
	tr.Init([]id.RoomID{"!a:example.com"})
	tr.Update(memberEvent("!a:example.com", botID.String(), event.MembershipLeave))

	if tr.Contains("!a:example.com") {
		t.Error("expected room to be removed after leave")
	}
}

func TestTracker_Ban(t *testing.T) {
	tr := NewTracker(botID, slog.Default())
	tr.Init([]id.RoomID{"!a:example.com"})
	tr.Update(memberEvent("!a:example.com", botID.String(), event.MembershipBan))

	if tr.Contains("!a:example.com") {
		t.Error("expected room to be removed after ban")
	}
}

func TestTracker_LeaveAbsentRoom(t *testing.T) {
	tr := NewTracker(botID, slog.Default())

	// Removal of an untracked room must not panic or fail
	tr.Update(memberEvent("!ghost:example.com", botID.String(), event.MembershipLeave))

	if tr.Contains("!ghost:example.com") {
		t.Error("did not expect room to be tracked")
	}
}

func TestTracker_IgnoresOtherUsers(t *testing.T) {
	tr := NewTracker(botID, slog.Default())
	tr.Init([]id.RoomID{"!a:example.com"})

	// Someone else leaving must not change the bot's membership
	tr.Update(memberEvent("!a:example.com", "@someone:example.com", event.MembershipLeave))
	if !tr.Contains("!a:example.com") {
		t.Error("membership event for another user changed the set")
	}

	tr.Update(memberEvent("!b:example.com", "@someone:example.com", event.MembershipJoin))
	if tr.Contains("!b:example.com") {
		t.Error("membership event for another user added a room")
	}
}

func TestTracker_IgnoresUnparsedContent(t *testing.T) {
	tr := NewTracker(botID, slog.Default())
	stateKey := botID.String()
	tr.Update(&event.Event{
		RoomID:   "!a:example.com",
		StateKey: &stateKey,
		Content:  event.Content{},
	})

	if tr.Contains("!a:example.com") {
		t.Error("event without parsed content changed the set")
	}
}
