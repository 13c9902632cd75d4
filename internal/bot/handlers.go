package bot

import (
	"context"
	"errors"
	"strings"

	"remindbot/internal/datetime"
	"remindbot/internal/dialog"
	"remindbot/internal/storage"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

func (b *Bot) list(ctx context.Context, req *router.Request, owner dialog.Owner) error {
	rs, err := b.store.ListByOwner(ctx, owner.ID, b.limit)
	if err != nil {
		req.Log.Error("list reminders failed", logx.Err(err))
		return b.reply(ctx, req, listFailedReply())
	}
	return b.reply(ctx, req, listReply(rs, b.zones.Resolve(ctx, owner.ID), b.now()))
}

func (b *Bot) timezone(ctx context.Context, req *router.Request, owner dialog.Owner, arg string) error {
	if arg == "" {
		loc := b.zones.Resolve(ctx, owner.ID)
		return b.reply(ctx, req, timezoneReply(loc.String(), loc, b.now()))
	}
	name, loc, ok := datetime.NormalizeZone(arg)
	if !ok {
		return b.reply(ctx, req, badZoneReply(arg))
	}
	if err := b.store.TouchUser(ctx, storage.User{ID: owner.ID, Name: owner.Name, Timezone: name, LastActivity: b.now().UTC()}); err != nil {
		req.Log.Error("timezone save failed", logx.Err(err))
		return b.reply(ctx, req, startFailedReply())
	}
	req.Log.Info("timezone changed", logx.String("tz", name))
	return b.reply(ctx, req, timezoneSetReply(name, loc, b.now()))
}

// fallback resolves a typed done/delete/reschedule against the owner's
// most recently delivered reminder. Other text is ignored.
func (b *Bot) fallback(ctx context.Context, req *router.Request, owner dialog.Owner, text string) error {
	word := strings.ToLower(strings.TrimSpace(text))
	if !isQuickAction(word) {
		return nil
	}
	last, err := b.store.LastSent(ctx, owner.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return b.reply(ctx, req, noRecentReply())
	}
	if err != nil {
		req.Log.Error("last sent lookup failed", logx.Err(err))
		return b.reply(ctx, req, startFailedReply())
	}
	return b.act(ctx, req, owner, word, last.ID)
}

func isQuickAction(word string) bool {
	return word == "done" || word == "delete" || word == "reschedule"
}

// act applies a quick action to one of the owner's reminders.
func (b *Bot) act(ctx context.Context, req *router.Request, owner dialog.Owner, word string, id int64) error {
	if !isQuickAction(word) {
		return nil
	}
	log := req.Log.With(logx.Int64("id", id))
	switch word {
	case "done":
		if _, err := b.store.GetReminder(ctx, owner.ID, id); errors.Is(err, storage.ErrNotFound) {
			return b.reply(ctx, req, missingReply(id))
		} else if err != nil {
			log.Error("reminder lookup failed", logx.Err(err))
			return b.reply(ctx, req, startFailedReply())
		}
		return b.reply(ctx, req, doneReply(id))
	case "delete":
		ok, err := b.store.DeleteReminder(ctx, owner.ID, id)
		if err != nil {
			log.Error("delete reminder failed", logx.Err(err))
			return b.reply(ctx, req, startFailedReply())
		}
		if !ok {
			return b.reply(ctx, req, missingReply(id))
		}
		return b.reply(ctx, req, deletedReply(id))
	default:
		return b.start(ctx, req, owner, dialog.FlowReschedule, dialog.Draft{ReminderID: id})
	}
}
