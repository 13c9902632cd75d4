package dialog

import (
	"errors"
	"strings"
	"time"

	"remindbot/internal/recurrence"
	"remindbot/internal/storage"
)

// LaterDelay is how far ahead "later" schedules the renewal check.
const LaterDelay = 24 * time.Hour

// openRenewal expects SeriesKey, SeriesName, Remaining and LastAt seeded.
func (e *Engine) openRenewal(t *turn) (Reply, bool) {
	spec, err := e.loadSpec(t)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logFailure(t, "load series", err)
		}
		return Reply{}, true
	}
	t.sess.Step = StepChoice
	if t.sess.Draft.SeriesName == "" {
		t.sess.Draft.SeriesName = spec.Name
	}
	return RenewalPrompt(t.sess.Draft, spec.Frequency), false
}

func (e *Engine) loadSpec(t *turn) (recurrence.Spec, error) {
	sr, err := e.store.GetSeries(t.ctx, t.sess.Draft.SeriesKey)
	if err != nil {
		return recurrence.Spec{}, err
	}
	return recurrence.FromSeries(sr)
}

func (e *Engine) renewalChoice(t *turn) Result {
	switch strings.ToLower(strings.TrimSpace(t.text)) {
	case "renew":
		return e.renew(t)
	case "modify":
		return e.modify(t)
	case "stop":
		return e.stop(t)
	case "later":
		return e.later(t)
	}
	r := plain(`🤔 Please reply with: "renew", "modify", "stop", or "later"`)
	r.Choices = renewalChoices
	r.Preserve = true
	return reprompt(r)
}

func (e *Engine) renew(t *turn) Result {
	spec, err := e.loadSpec(t)
	if err != nil {
		return e.persistFailed(t, "renew reminders", err)
	}
	start := recurrence.WeekAfter(t.now, t.sess.Draft.LastAt)
	batch := recurrence.ExpandFrom(spec, t.owner(), t.now, start, spec.Frequency.Weeks())
	if _, err := e.store.CreateReminders(t.ctx, batch); err != nil {
		return e.persistFailed(t, "renew reminders", err)
	}
	return complete(renewedReply(spec, batch, t.now.Location()))
}

// modify turns the session into a medicine flow for the same medicine,
// resuming at the frequency step. The old series is replaced on confirm.
func (e *Engine) modify(t *turn) Result {
	d := t.sess.Draft
	t.sess.Flow = FlowMedicine
	t.sess.StartedAt = t.now
	t.sess.Draft = Draft{Name: d.SeriesName, IsRenewal: true, PrevSeries: d.SeriesKey}
	return advance(t, StepFrequency, modifyPrompt(d.SeriesName))
}

func (e *Engine) stop(t *turn) Result {
	d := t.sess.Draft
	n, err := e.store.DeleteUnsentInSeries(t.ctx, d.SeriesKey)
	if err != nil {
		return e.persistFailed(t, "stop reminders", err)
	}
	return complete(stoppedReply(d.SeriesName, n))
}

func (e *Engine) later(t *turn) Result {
	d := t.sess.Draft
	at := t.now.Add(LaterDelay)
	r := t.owner()
	r.Message = renewalCheckMessage(d.SeriesName)
	r.At = at.UTC()
	if _, err := e.store.CreateReminder(t.ctx, r); err != nil {
		return e.persistFailed(t, "schedule reminder", err)
	}
	return complete(laterReply(d.SeriesName, at, t.now))
}
