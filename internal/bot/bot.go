// ABOUTME: Matrix runtime for the gitea bot
// ABOUTME: Syncs membership into the room tracker and dispatches !gitea commands

package bot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/gitea-matrix/internal/config"
	"github.com/2389/gitea-matrix/internal/rooms"
)

const commandPrefix = "!gitea"

// networkTimeout is the timeout for Matrix API calls made outside the
// sync loop.
const networkTimeout = 30 * time.Second

// Bot is the Matrix side of the bridge. It keeps the room tracker current
// from sync, answers !gitea commands, and delivers webhook notifications.
type Bot struct {
	cfg      *config.Config
	matrix   *mautrix.Client
	tracker  *rooms.Tracker
	commands *Commands
	logger   *slog.Logger

	// ctx is the parent context for command goroutines
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a bot connected to the configured homeserver.
func New(cfg *config.Config, tracker *rooms.Tracker, commands *Commands, logger *slog.Logger) (*Bot, error) {
	client, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	return &Bot{
		cfg:      cfg,
		matrix:   client,
		tracker:  tracker,
		commands: commands,
		logger:   logger.With("component", "bot"),
	}, nil
}

// Run seeds the room tracker, starts syncing, and blocks until the context
// is cancelled or the sync loop fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("starting matrix bot",
		"homeserver", b.cfg.Matrix.Homeserver,
		"user_id", b.cfg.Matrix.UserID,
	)

	// Store context for command processing goroutines
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()

	// The tracker is rebuilt from the homeserver on every start; membership
	// changes while we were down would otherwise be lost.
	resp, err := b.matrix.JoinedRooms(ctx)
	if err != nil {
		return fmt.Errorf("fetching joined rooms: %w", err)
	}
	b.tracker.Init(resp.JoinedRooms)
	b.logger.Info("room tracker initialized", "rooms", len(resp.JoinedRooms))

	syncer, ok := b.matrix.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.matrix.Syncer)
	}
	syncer.OnEventType(event.StateMember, b.handleMemberEvent)
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)

	b.logger.Info("connecting to matrix homeserver")

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.matrix.SyncWithContext(b.ctx)
	}()

	b.logger.Info("matrix bot running")

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down matrix bot")
		b.cancel()
		return nil
	case err := <-syncErr:
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// SendNotification delivers a webhook message to a room. Message type
// follows the send_as_notice setting.
func (b *Bot) SendNotification(ctx context.Context, roomID id.RoomID, text string) error {
	msgType := event.MsgText
	if b.cfg.Webhook.SendAsNotice {
		msgType = event.MsgNotice
	}
	return b.sendMarkdown(ctx, roomID, msgType, text)
}

// handleMemberEvent keeps the tracker in sync and accepts invites.
func (b *Bot) handleMemberEvent(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() == b.matrix.UserID.String() {
		if content, ok := evt.Content.Parsed.(*event.MemberEventContent); ok && content.Membership == event.MembershipInvite {
			b.logger.Info("invited to room", "room", evt.RoomID.String(), "inviter", evt.Sender.String())
			go b.joinRoom(evt.RoomID)
		}
	}
	b.tracker.Update(evt)
}

// handleMessageEvent dispatches !gitea commands from incoming messages.
func (b *Bot) handleMessageEvent(ctx context.Context, evt *event.Event) {
	// Ignore our own messages
	if evt.Sender == b.matrix.UserID {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}

	// Only handle text messages
	if content.MsgType != event.MsgText {
		return
	}

	body := content.Body
	if !strings.HasPrefix(body, commandPrefix) {
		return
	}
	line := strings.TrimSpace(strings.TrimPrefix(body, commandPrefix))

	b.logger.Info("received command",
		"room", evt.RoomID.String(),
		"sender", evt.Sender.String(),
	)

	// Process in a goroutine to not block sync
	go b.runCommand(b.ctx, evt.RoomID, evt.Sender, line)
}

// runCommand executes one command and replies in the room.
func (b *Bot) runCommand(ctx context.Context, roomID id.RoomID, sender id.UserID, line string) {
	reply := b.commands.Handle(ctx, sender.String(), line)
	if reply == "" {
		return
	}
	if err := b.sendMarkdown(ctx, roomID, event.MsgNotice, reply); err != nil {
		b.logger.Error("failed to send command reply", "room", roomID.String(), "error", err)
	}
}

// joinRoom accepts an invite. The resulting join state event adds the room
// to the tracker through the normal sync path.
func (b *Bot) joinRoom(roomID id.RoomID) {
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()
	if _, err := b.matrix.JoinRoomByID(ctx, roomID); err != nil {
		b.logger.Error("failed to join room", "room", roomID.String(), "error", err)
	}
}

// sendMarkdown sends a message with the markdown source as the plain body
// and the rendered HTML as formatted_body.
func (b *Bot) sendMarkdown(ctx context.Context, roomID id.RoomID, msgType event.MessageType, text string) error {
	content := &event.MessageEventContent{
		MsgType: msgType,
		Body:    text,
	}
	if html := renderMarkdown(text); html != "" {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}

	sendCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := b.matrix.SendMessageEvent(sendCtx, roomID, event.EventMessage, content); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// renderMarkdown converts markdown to HTML, returning "" when rendering
// fails so callers fall back to the plain body.
func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
