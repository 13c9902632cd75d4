package dialog

import (
	"context"
	"fmt"
	"time"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// Store is the persistence the flows need.
type Store interface {
	storage.ReminderStore
	storage.SeriesStore
}

// Zones resolves an owner's time zone.
type Zones interface {
	Resolve(ctx context.Context, ownerID string) *time.Location
}

type Options struct {
	// DeleteCandidates is how many recent reminders the delete flow offers.
	DeleteCandidates int
	Now              func() time.Time
	Log              logx.Logger
}

// Engine runs flows against a store.
type Engine struct {
	store      Store
	zones      Zones
	now        func() time.Time
	log        logx.Logger
	candidates int
}

func NewEngine(store Store, zones Zones, opt Options) *Engine {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.DeleteCandidates <= 0 {
		opt.DeleteCandidates = 10
	}
	return &Engine{
		store:      store,
		zones:      zones,
		now:        opt.Now,
		log:        opt.Log.Component("dialog"),
		candidates: opt.DeleteCandidates,
	}
}

// turn is the context one step handler runs with.
type turn struct {
	ctx  context.Context
	sess *Session
	text string
	now  time.Time // in the owner's zone
}

type (
	// opener prepares a session and returns its first prompt. done reports
	// that the flow finished immediately and must not be stored.
	opener  func(e *Engine, t *turn) (reply Reply, done bool)
	handler func(e *Engine, t *turn) Result
)

type flowDef struct {
	open  opener
	steps map[StepName]handler
}

var flows map[FlowKind]flowDef

func init() {
	flows = map[FlowKind]flowDef{
		FlowReminder: {
			open: (*Engine).openReminder,
			steps: map[StepName]handler{
				StepActivity: (*Engine).reminderActivity,
				StepDate:     (*Engine).reminderDate,
				StepTime:     (*Engine).reminderTime,
				StepConfirm:  (*Engine).reminderConfirm,
			},
		},
		FlowMedicine: {
			open: (*Engine).openMedicine,
			steps: map[StepName]handler{
				StepMedicineName: (*Engine).medicineName,
				StepFrequency:    (*Engine).medicineFrequency,
				StepSpecificDays: (*Engine).medicineDays,
				StepTimes:        (*Engine).medicineTimes,
				StepConfirm:      (*Engine).medicineConfirm,
			},
		},
		FlowDelete: {
			open:  (*Engine).openDelete,
			steps: map[StepName]handler{StepSelect: (*Engine).deleteSelect},
		},
		FlowClear: {
			open:  (*Engine).openClear,
			steps: map[StepName]handler{StepConfirm: (*Engine).clearConfirm},
		},
		FlowReschedule: {
			open: (*Engine).openReschedule,
			steps: map[StepName]handler{
				StepDate: (*Engine).rescheduleDate,
				StepTime: (*Engine).rescheduleTime,
			},
		},
		FlowRenewal: {
			open:  (*Engine).openRenewal,
			steps: map[StepName]handler{StepChoice: (*Engine).renewalChoice},
		},
	}
}

func (e *Engine) localNow(ctx context.Context, ownerID string) time.Time {
	return e.now().In(e.zones.Resolve(ctx, ownerID))
}

// Begin starts kind for owner with seed as the initial draft. The returned
// session is nil when the flow completed in its opening step.
func (e *Engine) Begin(ctx context.Context, owner Owner, kind FlowKind, seed Draft) (*Session, Reply, error) {
	def, ok := flows[kind]
	if !ok {
		return nil, Reply{}, fmt.Errorf("dialog: unknown flow %q", kind)
	}
	now := e.localNow(ctx, owner.ID)
	sess := &Session{Owner: owner, Flow: kind, Draft: seed, StartedAt: now}
	reply, done := def.open(e, &turn{ctx: ctx, sess: sess, now: now})
	if done {
		return nil, reply, nil
	}
	return sess, reply, nil
}

// Step feeds one line of input to the session's current step. On Advance
// the session has been updated in place; it may even have moved to a
// different flow.
func (e *Engine) Step(ctx context.Context, sess *Session, text string) (Result, error) {
	def, ok := flows[sess.Flow]
	if !ok {
		return Result{}, fmt.Errorf("dialog: unknown flow %q", sess.Flow)
	}
	h, ok := def.steps[sess.Step]
	if !ok {
		return Result{}, fmt.Errorf("dialog: flow %s has no step %q", sess.Flow, sess.Step)
	}
	t := &turn{ctx: ctx, sess: sess, text: text, now: e.localNow(ctx, sess.Owner.ID)}
	res := h(e, t)
	e.log.Debug("dialog step",
		logx.String("owner", sess.Owner.ID),
		logx.String("flow", string(sess.Flow)),
		logx.String("step", string(sess.Step)),
		logx.String("outcome", res.Outcome.String()),
	)
	return res, nil
}

func reprompt(r Reply) Result { return Result{Outcome: Reprompt, Reply: r} }
func complete(r Reply) Result { return Result{Outcome: Complete, Reply: r} }

// advance moves the session to step and returns its prompt.
func advance(t *turn, step StepName, r Reply) Result {
	t.sess.Step = step
	return Result{Outcome: Advance, Reply: r}
}

func (t *turn) owner() storage.Reminder {
	o := t.sess.Owner
	return storage.Reminder{OwnerID: o.ID, OwnerName: o.Name, ChatID: o.Chat.ChatID}
}

func (e *Engine) logFailure(t *turn, what string, err error) {
	e.log.Warn("dialog persist failed",
		logx.String("owner", t.sess.Owner.ID),
		logx.String("flow", string(t.sess.Flow)),
		logx.String("op", what),
		logx.Err(err),
	)
}

// persistFailed logs a storage error and keeps the session where it is.
func (e *Engine) persistFailed(t *turn, what string, err error) Result {
	e.logFailure(t, what, err)
	return reprompt(failedReply(what))
}
