package dialog

import (
	"strings"
	"time"
	"unicode/utf8"

	"remindbot/internal/datetime"
)

const (
	minActivityLen = 5
	minMedicineLen = 3
)

func (e *Engine) openReminder(t *turn) (Reply, bool) {
	t.sess.Step = StepActivity
	return activityPrompt(), false
}

func (e *Engine) reminderActivity(t *turn) Result {
	activity := strings.TrimSpace(t.text)
	if utf8.RuneCountInString(activity) < minActivityLen {
		return reprompt(plain("❌ Please enter a more detailed reminder (at least 5 characters)."))
	}
	t.sess.Draft.Activity = activity
	return advance(t, StepDate, datePrompt("✅ Activity saved: "+activity, "Step 2 of 3"))
}

// parseFutureDate parses a date that is not before today.
func parseFutureDate(t *turn, verb string) (time.Time, *Reply) {
	date, ok := datetime.ParseDate(t.text, t.now)
	if !ok {
		r := badDate(strings.TrimSpace(t.text))
		return time.Time{}, &r
	}
	if date.Before(datetime.StartOfDay(t.now)) {
		r := plain("❌ Please choose a future date. Can't " + verb + " in the past!")
		return time.Time{}, &r
	}
	return date, nil
}

// parseFutureTime combines input with the drafted date; the result must be
// strictly after now.
func parseFutureTime(t *turn, verb string) (time.Time, *Reply) {
	at, ok := datetime.ParseTime(t.text, t.sess.Draft.Date)
	if !ok {
		r := badTime(strings.TrimSpace(t.text))
		return time.Time{}, &r
	}
	if !at.After(t.now) {
		r := plain("❌ Please choose a future time. Can't " + verb + " in the past!")
		return time.Time{}, &r
	}
	return at, nil
}

func (e *Engine) reminderDate(t *turn) Result {
	date, bad := parseFutureDate(t, "set reminders")
	if bad != nil {
		return reprompt(*bad)
	}
	t.sess.Draft.Date = date
	return advance(t, StepTime, timePrompt("✅ Date saved: "+date.Format(layoutDate), "Step 3 of 3"))
}

func (e *Engine) reminderTime(t *turn) Result {
	at, bad := parseFutureTime(t, "set reminders")
	if bad != nil {
		return reprompt(*bad)
	}
	t.sess.Draft.At = at
	return advance(t, StepConfirm, reminderConfirmPrompt(t.sess.Draft, t.now))
}

// yesNoAnswer classifies a confirm-step answer.
func yesNoAnswer(s string) (yes, no bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true, false
	case "no", "n":
		return false, true
	}
	return false, false
}

func (e *Engine) reminderConfirm(t *turn) Result {
	yes, no := yesNoAnswer(t.text)
	switch {
	case no:
		return complete(plain("❌ Reminder cancelled. Type /reminder to create a new one."))
	case !yes:
		return reprompt(yesOrNo())
	}
	d := t.sess.Draft
	// The session may have sat at this step long enough for At to pass.
	if !d.At.After(t.now) {
		t.sess.Draft.At = time.Time{}
		return advance(t, StepTime, timePrompt("⌛ That time has already passed.", "Step 3 of 3"))
	}
	r := t.owner()
	r.Message = d.Activity
	r.At = d.At.UTC()
	saved, err := e.store.CreateReminder(t.ctx, r)
	if err != nil {
		return e.persistFailed(t, "save reminder", err)
	}
	return complete(reminderSaved(saved, d.At, t.now))
}

