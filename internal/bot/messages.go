package bot

import (
	"fmt"
	"strings"
	"time"

	"remindbot/internal/datetime"
	"remindbot/internal/dialog"
	"remindbot/internal/storage"
	"remindbot/internal/transport/telegram/router"
	"remindbot/pkg/tgui"
)

const (
	layoutList  = "Jan 2, 2006 at 3:04 PM"
	maxComplete = 5
	maxEntry    = 120
)

func say(b *tgui.Builder) dialog.Reply { return dialog.Reply{Text: b.Build().Text} }

func keep(b *tgui.Builder) dialog.Reply { return dialog.Reply{Text: b.Build().Text, Preserve: true} }

func line(s string) dialog.Reply { return say(tgui.New().Line(s)) }

func helpReply() dialog.Reply {
	b := tgui.New().Title("🤖", "REMINDER BOT HELP").Blank().
		Line("🎯 I help you remember important tasks by messaging you at scheduled times.").Blank().
		Section("📋 Commands")
	for _, s := range router.Specs() {
		names := make([]string, 0, 1+len(s.Aliases))
		names = append(names, "/"+s.Name)
		for _, a := range s.Aliases {
			names = append(names, "/"+a)
		}
		usage := strings.Join(names, " or ")
		if s.Usage != "" {
			usage = s.Usage
		}
		b.Blank().RawLine(tgui.JoinH(" ", tgui.Esc("🔸"), tgui.B(usage))).Line("   " + s.Description)
	}
	return keep(b.Blank().RawLine(tgui.I(`💬 After a reminder arrives, reply "done", "reschedule" or "delete".`)))
}

func unknownReply(name string) dialog.Reply {
	return line(fmt.Sprintf("❓ Unknown command: /%s. Type /help for available commands.", name))
}

func startFailedReply() dialog.Reply {
	return line("❌ Something went wrong. Please try again.")
}

func listReply(rs []storage.Reminder, loc *time.Location, now time.Time) dialog.Reply {
	if len(rs) == 0 {
		return keep(tgui.New().Title("🤷", "You don't have any reminders yet.").Blank().
			Section("💡 Get started").
			Bullets("Type /reminder to create your first one", "Type /help to see all commands"))
	}

	var pending, done []storage.Reminder
	for _, r := range rs {
		if r.Sent {
			done = append(done, r)
		} else {
			pending = append(pending, r)
		}
	}
	// ListByOwner is latest first; pending reads better soonest first.
	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}

	plural := "s"
	if len(rs) == 1 {
		plural = ""
	}
	b := tgui.New().Title("📋", "YOUR REMINDERS").Blank().
		Section(fmt.Sprintf("📊 Total: %d reminder%s", len(rs), plural))
	if len(pending) > 0 {
		b.Blank().Section(fmt.Sprintf("⏳ PENDING (%d):", len(pending)))
		for _, r := range pending {
			at := r.At.In(loc)
			b.Blank().RawLine(entry("🔸", r)).
				Line("   📅 " + at.Format(layoutList)).
				Line("   ⏰ " + datetime.Relative(at, now.In(loc)))
		}
	}
	if len(done) > 0 {
		b.Blank().Section(fmt.Sprintf("✅ COMPLETED (%d):", len(done)))
		for i, r := range done {
			if i == maxComplete {
				b.Blank().Line(fmt.Sprintf("   ... and %d more", len(done)-maxComplete))
				break
			}
			b.Blank().RawLine(entry("🔹", r)).Line("   📅 " + r.At.In(loc).Format(layoutList))
		}
	}
	return keep(b.Blank().Section("🚀 Quick actions").Bullets(
		"/reminder - Create new reminder",
		"/delete - Remove specific reminder by ID",
		"/clear - Remove all reminders",
	))
}

func entry(mark string, r storage.Reminder) tgui.H {
	return tgui.JoinH(" ", tgui.Esc(mark), tgui.B(fmt.Sprintf("#%d", r.ID)), tgui.Esc(tgui.TruncRunes(r.Message, maxEntry)))
}

func listFailedReply() dialog.Reply { return line("❌ Failed to retrieve reminders.") }

func noRecentReply() dialog.Reply { return line("❌ No recent reminder found to respond to.") }

func missingReply(id int64) dialog.Reply {
	return line(fmt.Sprintf("❌ Reminder #%d no longer exists.", id))
}

func doneReply(id int64) dialog.Reply {
	return line(fmt.Sprintf("✅ Great! Marked reminder #%d as completed.", id))
}

func deletedReply(id int64) dialog.Reply {
	return line(fmt.Sprintf("🗑️ Reminder #%d deleted successfully.", id))
}

func timezoneReply(name string, loc *time.Location, now time.Time) dialog.Reply {
	return say(tgui.New().Title("🌍", "TIMEZONE").Blank().
		RawLine(tgui.JoinH(" ", tgui.B("Zone:"), tgui.Code(name))).
		KV("Local time", now.In(loc).Format("Mon Jan 2, 3:04 PM")).Blank().
		Line("💡 Change it with /timezone <zone>, e.g. /timezone Asia/Kolkata or /timezone pst"))
}

func timezoneSetReply(name string, loc *time.Location, now time.Time) dialog.Reply {
	return say(tgui.New().Line("✅ Timezone set to "+name).
		Line("🕐 Your local time is "+now.In(loc).Format("3:04 PM")))
}

func badZoneReply(in string) dialog.Reply {
	return say(tgui.New().RawLine(tgui.JoinH(" ", tgui.Esc("❌ Unknown timezone"), tgui.Code(in))).
		Line("Try an IANA name like Asia/Kolkata or Europe/Berlin, or an alias: ist, pst, est, utc"))
}
