package dialog

import (
	"strings"
	"unicode/utf8"

	"remindbot/internal/datetime"
	"remindbot/internal/recurrence"
	logx "remindbot/pkg/logx"
)

func (e *Engine) openMedicine(t *turn) (Reply, bool) {
	t.sess.Step = StepMedicineName
	return medicineNamePrompt(), false
}

func (e *Engine) medicineName(t *turn) Result {
	name := strings.TrimSpace(t.text)
	if utf8.RuneCountInString(name) < minMedicineLen {
		return reprompt(plain("❌ Please enter a valid medicine name (at least 3 characters)."))
	}
	t.sess.Draft.Name = name
	return advance(t, StepFrequency, frequencyPrompt("✅ Medicine saved: "+name))
}

func (e *Engine) medicineFrequency(t *turn) Result {
	f, ok := recurrence.ParseFrequency(t.text)
	if !ok {
		return reprompt(frequencyPrompt("❌ Please choose: daily, weekdays, specific, or once"))
	}
	t.sess.Draft.Frequency = f
	if f == recurrence.Specific {
		return advance(t, StepSpecificDays, daysPrompt())
	}
	t.sess.Draft.Days = nil
	return advance(t, StepTimes, timesPrompt("", f))
}

func (e *Engine) medicineDays(t *turn) Result {
	days, err := recurrence.ParseDays(t.text)
	if err != nil {
		return reprompt(plain("❌ No valid days found. Please use day names like: monday, tuesday, etc."))
	}
	t.sess.Draft.Days = days
	return advance(t, StepTimes, timesPrompt("✅ Selected days: "+dayList(days), recurrence.Specific))
}

func (e *Engine) medicineTimes(t *turn) Result {
	input := strings.TrimSpace(t.text)
	times, _ := datetime.ParseClockList(input)
	if len(times) == 0 {
		return reprompt(badTimes(input))
	}
	d := &t.sess.Draft
	if d.Frequency == recurrence.Once {
		today := datetime.StartOfDay(t.now)
		var future []datetime.Clock
		for _, c := range times {
			if c.On(today).After(t.now) {
				future = append(future, c)
			}
		}
		if len(future) == 0 {
			return reprompt(plain("❌ All of those times have already passed today. Please choose a later time."))
		}
		times = future
	}
	d.Times = times
	return advance(t, StepConfirm, medicineConfirmPrompt(draftSpec(*d, ""), t.now))
}

func draftSpec(d Draft, key string) recurrence.Spec {
	return recurrence.Spec{Key: key, Name: d.Name, Frequency: d.Frequency, Days: d.Days, Times: d.Times}
}

func (e *Engine) medicineConfirm(t *turn) Result {
	yes, no := yesNoAnswer(t.text)
	switch {
	case no:
		return complete(plain("❌ Medicine reminder cancelled. Type /medicine to create a new one."))
	case !yes:
		return reprompt(yesOrNo())
	}
	d := t.sess.Draft
	spec := draftSpec(d, recurrence.NewKey(t.now))
	owner := t.owner()
	batch := recurrence.Expand(spec, owner, t.now)
	if len(batch) == 0 {
		t.sess.Draft.Times = nil
		return advance(t, StepTimes, timesPrompt("⌛ Those times have already passed.", d.Frequency))
	}
	if _, err := e.store.CreateSeriesBatch(t.ctx, spec.ToSeries(owner, t.now), batch); err != nil {
		return e.persistFailed(t, "save medicine reminders", err)
	}
	if d.IsRenewal && d.PrevSeries != "" {
		if _, err := e.store.DeleteUnsentInSeries(t.ctx, d.PrevSeries); err != nil {
			e.log.Warn("drop replaced series failed", logx.String("series", d.PrevSeries), logx.Err(err))
		}
	}
	return complete(medicineSaved(spec, batch, t.now.Location()))
}
