package dialog

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"remindbot/internal/storage"
)

func (e *Engine) openDelete(t *turn) (Reply, bool) {
	rs, err := e.store.ListByOwner(t.ctx, t.sess.Owner.ID, e.candidates)
	if err != nil {
		e.logFailure(t, "load reminders", err)
		return failedReply("load reminders"), true
	}
	if len(rs) == 0 {
		return plain("📝 No reminders to delete. Create one with /reminder first."), true
	}
	ids := make([]int64, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	t.sess.Step = StepSelect
	t.sess.Draft.Candidates = ids
	return deletePrompt(rs, t.now.Location()), false
}

// parseID accepts "12" or "#12".
func parseID(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func (e *Engine) deleteSelect(t *turn) Result {
	if strings.EqualFold(strings.TrimSpace(t.text), "cancel") {
		return complete(plain("❌ Delete operation cancelled."))
	}
	id, ok := parseID(t.text)
	if !ok || !slices.Contains(t.sess.Draft.Candidates, id) {
		return reprompt(plain(fmt.Sprintf("❌ Reminder #%s not found. Please enter a valid ID from the list.",
			strings.TrimPrefix(strings.TrimSpace(t.text), "#"))))
	}
	r, err := e.store.GetReminder(t.ctx, t.sess.Owner.ID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return reprompt(plain(fmt.Sprintf("❌ Reminder #%d not found. Please enter a valid ID from the list.", id)))
	}
	if err != nil {
		return e.persistFailed(t, "delete reminder", err)
	}
	if _, err := e.store.DeleteReminder(t.ctx, t.sess.Owner.ID, id); err != nil {
		return e.persistFailed(t, "delete reminder", err)
	}
	return complete(deletedReply(r, t.now.Location()))
}

func (e *Engine) openClear(t *turn) (Reply, bool) {
	n, err := e.store.CountForOwner(t.ctx, t.sess.Owner.ID)
	if err != nil {
		e.logFailure(t, "load reminders", err)
		return failedReply("load reminders"), true
	}
	if n == 0 {
		return plain("📝 No reminders to clear. Your list is already empty."), true
	}
	t.sess.Step = StepConfirm
	t.sess.Draft.Count = n
	return clearPrompt(n), false
}

// clearConfirm ends the session whatever the answer; only an exact
// "DELETE ALL" deletes.
func (e *Engine) clearConfirm(t *turn) Result {
	if strings.TrimSpace(t.text) != "DELETE ALL" {
		return complete(plain("❌ Clear operation cancelled. Your reminders are safe."))
	}
	n, err := e.store.DeleteAllForOwner(t.ctx, t.sess.Owner.ID)
	if err != nil {
		e.logFailure(t, "clear reminders", err)
		return complete(failedReply("clear reminders"))
	}
	return complete(clearedReply(n))
}

// openReschedule expects the seed to carry ReminderID.
func (e *Engine) openReschedule(t *turn) (Reply, bool) {
	id := t.sess.Draft.ReminderID
	r, err := e.store.GetReminder(t.ctx, t.sess.Owner.ID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return plain(fmt.Sprintf("❌ Reminder #%d not found.", id)), true
	}
	if err != nil {
		e.logFailure(t, "load reminder", err)
		return failedReply("load reminder"), true
	}
	t.sess.Step = StepDate
	t.sess.Draft.Activity = r.Message
	return datePrompt(fmt.Sprintf("🔄 Rescheduling #%d: %s", r.ID, r.Message), "Step 1 of 2"), false
}

func (e *Engine) rescheduleDate(t *turn) Result {
	date, bad := parseFutureDate(t, "reschedule")
	if bad != nil {
		return reprompt(*bad)
	}
	t.sess.Draft.Date = date
	return advance(t, StepTime, timePrompt("✅ New date saved: "+date.Format(layoutDate), "Step 2 of 2"))
}

func (e *Engine) rescheduleTime(t *turn) Result {
	at, bad := parseFutureTime(t, "reschedule")
	if bad != nil {
		return reprompt(*bad)
	}
	d := t.sess.Draft
	if err := e.store.UpdateTime(t.ctx, d.ReminderID, at.UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return complete(plain(fmt.Sprintf("❌ Reminder #%d not found.", d.ReminderID)))
		}
		return e.persistFailed(t, "reschedule reminder", err)
	}
	r := storage.Reminder{ID: d.ReminderID, Message: d.Activity}
	return complete(rescheduledReply(r, at, t.now))
}
