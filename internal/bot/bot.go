// Package bot is the conversation front: it answers commands, hands text
// to the owner's session and resolves bare replies to a delivered
// reminder.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/dialog"
	"remindbot/internal/outbox"
	"remindbot/internal/storage"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

const DefaultListLimit = 20

type Store interface {
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]storage.Reminder, error)
	LastSent(ctx context.Context, ownerID string) (storage.Reminder, error)
	GetReminder(ctx context.Context, ownerID string, id int64) (storage.Reminder, error)
	DeleteReminder(ctx context.Context, ownerID string, id int64) (bool, error)
	TouchUser(ctx context.Context, u storage.User) error
	GetUser(ctx context.Context, id string) (storage.User, error)
}

type Sessions interface {
	Start(ctx context.Context, owner dialog.Owner, kind dialog.FlowKind, seed dialog.Draft) (dialog.Reply, error)
	Dispatch(ctx context.Context, ownerID, text string) (dialog.Reply, bool)
	Cancel(ctx context.Context, ownerID string) dialog.Reply
}

type Outbox interface {
	Enqueue(ctx context.Context, env outbox.Envelope) error
}

type Zones interface {
	Resolve(ctx context.Context, ownerID string) *time.Location
	Default() *time.Location
}

type Options struct {
	// Prefix marks text the bot should ignore, e.g. its own echoed replies.
	Prefix    string
	ListLimit int
	Now       func() time.Time
	Log       logx.Logger
}

type Bot struct {
	store    Store
	sessions Sessions
	out      Outbox
	zones    Zones
	prefix   string
	limit    int
	now      func() time.Time
	log      logx.Logger
}

func New(store Store, sessions Sessions, out Outbox, zones Zones, opt Options) *Bot {
	if opt.ListLimit <= 0 {
		opt.ListLimit = DefaultListLimit
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Bot{
		store:    store,
		sessions: sessions,
		out:      out,
		zones:    zones,
		prefix:   strings.TrimSpace(opt.Prefix),
		limit:    opt.ListLimit,
		now:      opt.Now,
		log:      opt.Log.Component("bot"),
	}
}

// Handle is the router handler for one inbound turn.
func (b *Bot) Handle(ctx context.Context, req *router.Request) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil
	}
	if b.prefix != "" && strings.HasPrefix(text, b.prefix) {
		return nil
	}
	b.touch(ctx, req)

	owner := dialog.Owner{ID: req.OwnerID(), Name: req.FromName, Chat: req.Chat}
	cmd := req.Command
	if req.ReminderID > 0 {
		return b.act(ctx, req, owner, strings.ToLower(text), req.ReminderID)
	}
	if cmd.Kind == router.KindText {
		if reply, ok := b.sessions.Dispatch(ctx, owner.ID, text); ok {
			return b.reply(ctx, req, reply)
		}
		return b.fallback(ctx, req, owner, text)
	}
	return b.command(ctx, req, owner, cmd)
}

// touch records activity. New users get the default zone.
func (b *Bot) touch(ctx context.Context, req *router.Request) {
	u := storage.User{ID: req.OwnerID(), Name: req.FromName, LastActivity: b.now().UTC()}
	if _, err := b.store.GetUser(ctx, u.ID); errors.Is(err, storage.ErrNotFound) && b.zones != nil {
		u.Timezone = b.zones.Default().String()
	}
	if err := b.store.TouchUser(ctx, u); err != nil {
		req.Log.Warn("user touch failed", logx.Err(err))
	}
}

func (b *Bot) command(ctx context.Context, req *router.Request, owner dialog.Owner, cmd router.Command) error {
	switch cmd.Kind {
	case router.KindReminder:
		return b.start(ctx, req, owner, dialog.FlowReminder, dialog.Draft{})
	case router.KindMedicine:
		return b.start(ctx, req, owner, dialog.FlowMedicine, dialog.Draft{})
	case router.KindDelete:
		return b.start(ctx, req, owner, dialog.FlowDelete, dialog.Draft{})
	case router.KindClear:
		return b.start(ctx, req, owner, dialog.FlowClear, dialog.Draft{})
	case router.KindList:
		return b.list(ctx, req, owner)
	case router.KindHelp:
		return b.reply(ctx, req, helpReply())
	case router.KindCancel:
		return b.reply(ctx, req, b.sessions.Cancel(ctx, owner.ID))
	case router.KindTimezone:
		return b.timezone(ctx, req, owner, cmd.Arg)
	case router.KindUnknown:
		return b.reply(ctx, req, unknownReply(cmd.Name))
	case router.KindText:
		return nil
	}
	return nil
}

func (b *Bot) start(ctx context.Context, req *router.Request, owner dialog.Owner, kind dialog.FlowKind, seed dialog.Draft) error {
	reply, err := b.sessions.Start(ctx, owner, kind, seed)
	if err != nil {
		req.Log.Error("session start failed", logx.String("flow", string(kind)), logx.Err(err))
		reply = startFailedReply()
	}
	return b.reply(ctx, req, reply)
}

func (b *Bot) reply(ctx context.Context, req *router.Request, r dialog.Reply) error {
	if strings.TrimSpace(r.Text) == "" {
		return nil
	}
	msg := dialog.Render(r)
	err := b.out.Enqueue(ctx, outbox.Envelope{Target: req.Chat, Text: msg.Text, Opt: msg.Opt, Preserve: r.Preserve})
	if err != nil {
		return fmt.Errorf("enqueue reply: %w", err)
	}
	return nil
}
