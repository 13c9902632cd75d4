package dialog

import (
	"fmt"
	"strings"
	"time"

	"remindbot/internal/datetime"
	"remindbot/internal/recurrence"
	"remindbot/internal/storage"
	"remindbot/pkg/tgui"
)

const (
	layoutDate     = "Monday, January 2, 2006"
	layoutClock    = "3:04 PM"
	layoutSchedule = "Monday, January 2 at 3:04 PM"
	layoutShort    = "Jan 2 at 3:04 PM"
	layoutInstance = "Mon Jan 2 at 3:04 PM"
)

var (
	yesNo          = []string{"yes", "no"}
	renewalChoices = []string{"renew", "modify", "stop", "later"}
)

func text(b *tgui.Builder) Reply { return Reply{Text: b.Build().Text} }

func plain(s string) Reply { return text(tgui.New().Line(s)) }

func failedReply(what string) Reply {
	return plain(fmt.Sprintf("❌ Failed to %s. Please try again.", what))
}

func examples(b *tgui.Builder, items ...string) *tgui.Builder {
	return b.Section("📋 Examples:").Bullets(items...)
}

func activityPrompt() Reply {
	b := tgui.New().Title("🔔", "CREATE REMINDER").Blank().
		Line("✨ Step 1 of 3: What should I remind you about?").Blank()
	examples(b, "Call doctor for appointment", "Submit quarterly report", "Pick up groceries on way home", "Team standup meeting")
	return text(b.Blank().Line("💬 Type your reminder activity:"))
}

func datePrompt(header string, step string) Reply {
	b := tgui.New().Line(header).Blank().Title("📅", "SELECT DATE").Blank().
		Line("✨ "+step+": When should I remind you?").Blank()
	examples(b, "today, tomorrow", "next monday, next friday", "january 20, march 15", "2025-06-10, 15/06/2025")
	return text(b.Blank().Line("📅 Type the date:"))
}

func timePrompt(header string, step string) Reply {
	b := tgui.New().Line(header).Blank().Title("🕐", "SELECT TIME").Blank().
		Line("✨ "+step+": What time should I remind you?").Blank()
	examples(b, "9 AM, 2:30 PM, 11:45 PM", "09:00, 14:30, 23:45", "noon, midnight")
	return text(b.Blank().Line("🕐 Type the time:"))
}

func badDate(input string) Reply {
	return text(tgui.New().
		Line(fmt.Sprintf("❌ Couldn't understand date: %q", input)).Blank().
		Line("🔄 Please try formats like:").
		Bullets("today, tomorrow", "next monday", "january 20", "2025-06-10"))
}

func badTime(input string) Reply {
	return text(tgui.New().
		Line(fmt.Sprintf("❌ Couldn't understand time: %q", input)).Blank().
		Line("🔄 Please try formats like:").
		Bullets("9 AM, 2:30 PM", "14:30, 09:00", "noon, midnight"))
}

func confirmReply(b *tgui.Builder) Reply {
	r := text(b.Blank().Line(`✅ Type "yes" to save`).Line(`❌ Type "no" to cancel`))
	r.Choices = yesNo
	return r
}

func yesOrNo() Reply {
	r := plain(`🤔 Please respond with "yes" or "no".`)
	r.Choices = yesNo
	return r
}

func reminderConfirmPrompt(d Draft, now time.Time) Reply {
	b := tgui.New().Title("✨", "CONFIRMATION").Blank().
		Section("🎯 Review your reminder:").
		KV("📝 Task", d.Activity).
		KV("📅 Date", d.At.Format(layoutDate)).
		KV("🕐 Time", d.At.Format(layoutClock)).
		KV("⏱️ Scheduled", datetime.Relative(d.At, now))
	return confirmReply(b)
}

func reminderSaved(r storage.Reminder, at, now time.Time) Reply {
	return text(tgui.New().Title("🎉", "SUCCESS!").Blank().
		Line("✅ Reminder created successfully!").Blank().
		KV("📝 Task", r.Message).
		KV("🆔 ID", fmt.Sprintf("#%d", r.ID)).
		KV("📅 Scheduled", at.Format(layoutSchedule)).
		KV("⏱️ That's", datetime.Relative(at, now)).Blank().
		Section("🚀 Quick actions").
		Bullets("/reminder - Create another reminder", "/list - View all your reminders", "/delete - Remove a specific reminder", "/help - See all commands"))
}

func medicineNamePrompt() Reply {
	b := tgui.New().Title("💊", "MEDICINE REMINDER").Blank().
		Line("✨ Step 1 of 4: What medicine should I remind you to take?").Blank()
	examples(b, "Vitamin D tablet", "Blood pressure medication", "Insulin injection", "Omega 3 capsule")
	return text(b.Blank().Line("💊 Type the medicine name:"))
}

func frequencyPrompt(header string) Reply {
	b := tgui.New()
	if header != "" {
		b.Line(header).Blank()
	}
	b.Title("📅", "SELECT FREQUENCY").Blank().
		Line("✨ Step 2 of 4: How often should I remind you?").Blank().
		Bullets("daily - Every day", "weekdays - Monday to Friday only", "specific - Choose specific days", "once - One-time reminder").Blank().
		Line("💡 Type: daily, weekdays, specific, or once")
	r := text(b)
	r.Choices = []string{string(recurrence.Daily), string(recurrence.Weekdays), string(recurrence.Specific), string(recurrence.Once)}
	return r
}

func daysPrompt() Reply {
	return text(tgui.New().Line("✅ Frequency: Custom days").Blank().
		Title("📋", "SELECT SPECIFIC DAYS").Blank().
		Line("✨ Step 3 of 4: Which days of the week? (separate with commas)").
		Bullets("monday, tuesday, wednesday", "mon, tue, wed, thu, fri", "saturday, sunday").Blank().
		Line("💡 Example: monday, wednesday, friday"))
}

func timesPrompt(header string, f recurrence.Frequency) Reply {
	step := "3"
	if f == recurrence.Specific {
		step = "4"
	}
	b := tgui.New()
	if header != "" {
		b.Line(header).Blank()
	}
	return text(b.Title("🕐", "SELECT TIME(S)").Blank().
		Line("✨ Step "+step+" of 4: What time(s) should I remind you?").Blank().
		Bullets("Single: 9 AM, 2:30 PM, 22:00", "Multiple: 8 AM, 2 PM, 8 PM", "Special: morning, noon, evening").Blank().
		Line("💡 For multiple times, separate with commas"))
}

func badTimes(input string) Reply {
	return text(tgui.New().
		Line(fmt.Sprintf("❌ Couldn't understand time: %q", input)).Blank().
		Line("🔄 Please try formats like:").
		Bullets("9 AM, 2:30 PM", "14:30, 09:00", "For multiple times: 8 AM, 2 PM, 8 PM"))
}

// frequencyText describes how often a spec fires.
func frequencyText(s recurrence.Spec) string {
	switch s.Frequency {
	case recurrence.Daily:
		return "Every day"
	case recurrence.Weekdays:
		return "Monday to Friday only"
	case recurrence.Once:
		return "One-time only"
	default:
		return dayList(s.Days)
	}
}

func dayList(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ", ")
}

func clockList(cs []datetime.Clock) string {
	ref := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.On(ref).Format(layoutClock)
	}
	return strings.Join(out, ", ")
}

func medicineConfirmPrompt(s recurrence.Spec, now time.Time) Reply {
	b := tgui.New().Title("✨", "CONFIRMATION").Blank().
		Section("🎯 Review your medicine reminder:").
		KV("💊 Medicine", s.Name).
		KV("📅 Frequency", frequencyText(s)).
		KV("🕐 Time(s)", clockList(s.Times)).
		KV("📊 Total reminders", s.Summary(now))
	return confirmReply(b)
}

// upcoming lists the first n instants and a "... and N more" tail.
func upcoming(b *tgui.Builder, rs []storage.Reminder, loc *time.Location, n int) {
	for i, r := range rs {
		if i == n {
			b.Line(fmt.Sprintf("... and %d more", len(rs)-n))
			break
		}
		b.Line(fmt.Sprintf("%d. %s", i+1, r.At.In(loc).Format(layoutInstance)))
	}
}

func medicineSaved(s recurrence.Spec, rs []storage.Reminder, loc *time.Location) Reply {
	b := tgui.New().Title("🎉", "SUCCESS!").Blank().
		Line(fmt.Sprintf("✅ Created %d reminders for the next %d week(s)!", len(rs), s.Frequency.Weeks())).Blank().
		KV("💊 Medicine", s.Name).
		KV("📅 Frequency", frequencyText(s)).
		KV("🕐 Times", clockList(s.Times)).Blank().
		Section("📅 Next few reminders")
	upcoming(b, rs, loc, 5)
	return text(b.Blank().Section("🚀 Quick actions").
		Bullets("/medicine - Create another medicine reminder", "/list - View all your reminders", "/help - See all commands"))
}

func deletePrompt(rs []storage.Reminder, loc *time.Location) Reply {
	b := tgui.New().Title("🗑️", "DELETE REMINDER").Blank().
		Section("📋 Select reminder to delete:").Blank()
	for _, r := range rs {
		status := "⏳"
		if r.Sent {
			status = "✅"
		}
		b.RawLine(tgui.JoinH(" ", tgui.Esc(status), tgui.B(fmt.Sprintf("#%d", r.ID)), tgui.Esc(r.Message))).
			Line("   📅 " + r.At.In(loc).Format(layoutShort))
	}
	return text(b.Blank().
		Line(fmt.Sprintf("💬 Type the ID number (e.g. %q) to delete", fmt.Sprint(rs[0].ID))).
		Line(`❌ Type "cancel" to abort`))
}

func deletedReply(r storage.Reminder, loc *time.Location) Reply {
	return text(tgui.New().Title("✅", "DELETED").Blank().
		Line(fmt.Sprintf("🗑️ Reminder #%d deleted successfully", r.ID)).
		KV("📝 Deleted", r.Message).
		KV("📅 Was scheduled", r.At.In(loc).Format(layoutShort)).Blank().
		Line("💡 Type /list to see remaining reminders"))
}

func clearPrompt(n int) Reply {
	plural := ""
	if n != 1 {
		plural = "s"
	}
	r := text(tgui.New().Title("⚠️", "CLEAR ALL REMINDERS").Blank().
		Section("🚨 WARNING: This will delete ALL your reminders!").Blank().
		Line(fmt.Sprintf("📊 You have %d reminder%s:", n, plural)).
		Bullets("Pending reminders will be cancelled", "Completed reminders will be removed", "This action cannot be undone").Blank().
		Line(`✅ Type "DELETE ALL" to confirm (case sensitive)`).
		Line("❌ Type anything else to cancel"))
	return r
}

func clearedReply(n int) Reply {
	return text(tgui.New().Title("🧹", "ALL CLEARED").Blank().
		Line(fmt.Sprintf("✅ Successfully deleted all %d reminders", n)).Blank().
		Line("💡 Type /reminder to create a new one"))
}

func rescheduledReply(r storage.Reminder, at, now time.Time) Reply {
	return text(tgui.New().Title("🔄", "RESCHEDULED").Blank().
		Line("✅ Reminder rescheduled successfully!").Blank().
		KV("📝 Task", r.Message).
		KV("🆔 ID", fmt.Sprintf("#%d", r.ID)).
		KV("📅 New schedule", at.Format(layoutSchedule)).
		KV("⏱️ That's", datetime.Relative(at, now)).Blank().
		Line("💡 Type /list to see all your reminders"))
}

// RenewalPrompt is the message that opens a renewal session.
func RenewalPrompt(d Draft, freq recurrence.Frequency) Reply {
	plural := ""
	if d.Remaining != 1 {
		plural = "s"
	}
	r := text(tgui.New().Title("🔄", "REMINDER RENEWAL").Blank().
		Section("⚠️ Your recurring reminder is running low!").
		KV("💊 Medicine", d.SeriesName).
		KV("📅 Frequency", frequencyLabel(freq)).
		KV("📊 Remaining", fmt.Sprintf("Only %d reminder%s left", d.Remaining, plural)).Blank().
		Line("Would you like to continue this reminder?").
		Bullets(
			fmt.Sprintf(`Reply "renew" - Continue for %d more week(s)`, freq.Weeks()),
			`Reply "modify" - Change schedule and continue`,
			`Reply "stop" - End this recurring reminder`,
			`Reply "later" - Ask me again in 24 hours`,
		))
	r.Choices = renewalChoices
	r.Preserve = true
	return r
}

func frequencyLabel(f recurrence.Frequency) string {
	switch f {
	case recurrence.Daily:
		return "Every day"
	case recurrence.Weekdays:
		return "Monday to Friday"
	case recurrence.Specific:
		return "Custom days"
	case recurrence.Once:
		return "One-time"
	default:
		return string(f)
	}
}

func renewedReply(s recurrence.Spec, rs []storage.Reminder, loc *time.Location) Reply {
	b := tgui.New().Title("✅", "RENEWAL SUCCESS").Blank().
		Line(fmt.Sprintf("🎉 %d new reminders created!", len(rs))).
		KV("💊 Medicine", s.Name).
		KV("📅 Extended for", fmt.Sprintf("%d more week(s)", s.Frequency.Weeks())).
		KV("🔄 Pattern", "Same as before").Blank().
		Section("📅 Next few reminders")
	upcoming(b, rs, loc, 3)
	return text(b.Blank().Line("💡 I'll check again when you're running low!"))
}

func modifyPrompt(name string) Reply {
	return frequencyPrompt(fmt.Sprintf("🔄 Modify & renew %s: pick the new schedule.", name))
}

func stoppedReply(name string, n int) Reply {
	return text(tgui.New().Title("🛑", "REMINDER STOPPED").Blank().
		Line("✅ Recurring reminder stopped successfully").
		KV("💊 Medicine", name).
		KV("🗑️ Removed", fmt.Sprintf("%d upcoming reminder(s)", n)).Blank().
		Line("💡 You can create new reminders anytime with /medicine"))
}

func laterReply(name string, at, now time.Time) Reply {
	return text(tgui.New().Title("⏰", "REMINDER SCHEDULED").Blank().
		Line("✅ I'll ask you again tomorrow").
		KV("💊 Medicine", name).
		KV("📅 Will ask again", at.Format(layoutShort)).
		KV("⏱️ That's", datetime.Relative(at, now)).Blank().
		Line("💡 Your current reminders will continue until then"))
}

// renewalCheckMessage is the one-off reminder "later" leaves behind.
func renewalCheckMessage(name string) string {
	return fmt.Sprintf("🔄 Renewal check: %s is running low. Type /medicine to set it up again.", name)
}
