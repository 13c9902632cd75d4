package session

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"remindbot/internal/dialog"
	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

const DefaultTimeout = 15 * time.Minute

// Engine runs flow steps.
type Engine interface {
	Begin(ctx context.Context, owner dialog.Owner, kind dialog.FlowKind, seed dialog.Draft) (*dialog.Session, dialog.Reply, error)
	Step(ctx context.Context, sess *dialog.Session, text string) (dialog.Result, error)
}

type Options struct {
	Timeout time.Duration
	Now     func() time.Time
	Log     logx.Logger
	Events  eventbus.Publisher
}

var (
	expiredReply   = dialog.Reply{Text: "⏰ Session expired due to inactivity. Type /reminder to start again."}
	failedReply    = dialog.Reply{Text: "❌ Something went wrong. Please start again."}
	cancelledReply = dialog.Reply{Text: "❌ Operation cancelled."}
	nothingReply   = dialog.Reply{Text: "💡 No active operation to cancel."}
)

// Manager owns the session lifecycle: start, dispatch, cancel and
// timeout. Calls for the same owner are serialized.
type Manager struct {
	repo    Repository
	engine  Engine
	timeout time.Duration
	now     func() time.Time
	log     logx.Logger
	events  eventbus.Publisher

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewManager(repo Repository, engine Engine, opt Options) *Manager {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Events == nil {
		opt.Events = eventbus.Nop{}
	}
	return &Manager{
		repo:    repo,
		engine:  engine,
		timeout: opt.Timeout,
		now:     opt.Now,
		log:     opt.Log.Component("session"),
		events:  opt.Events,
		locks:   map[string]*sync.Mutex{},
	}
}

func (m *Manager) lock(ownerID string) func() {
	m.locksMu.Lock()
	mu, ok := m.locks[ownerID]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[ownerID] = mu
	}
	m.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (m *Manager) publish(typ string, owner string, flow dialog.FlowKind) {
	m.events.Publish(eventbus.Event{Type: typ, Data: eventbus.Session{OwnerID: owner, Flow: string(flow)}})
}

// Start replaces any session the owner has with a new flow of kind and
// returns its opening prompt. Flows that finish while opening are not
// stored.
func (m *Manager) Start(ctx context.Context, owner dialog.Owner, kind dialog.FlowKind, seed dialog.Draft) (reply dialog.Reply, err error) {
	defer m.lock(owner.ID)()
	if err := m.repo.Delete(ctx, owner.ID); err != nil {
		return dialog.Reply{}, fmt.Errorf("session: drop previous: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			m.onPanic(ctx, owner.ID, kind, r)
			reply, err = failedReply, nil
		}
	}()

	sess, reply, err := m.engine.Begin(ctx, owner, kind, seed)
	if err != nil {
		return dialog.Reply{}, err
	}
	if sess == nil {
		return reply, nil
	}
	sess.StartedAt = m.now()
	if err := m.repo.Put(ctx, *sess); err != nil {
		return dialog.Reply{}, fmt.Errorf("session: store: %w", err)
	}
	m.publish(eventbus.SessionStarted, owner.ID, kind)
	m.log.Debug("session started", logx.String("owner", owner.ID), logx.String("flow", string(kind)))
	return reply, nil
}

// Dispatch hands text to the owner's session. handled is false when the
// owner has none; the caller then treats the text as a plain message.
func (m *Manager) Dispatch(ctx context.Context, ownerID, text string) (reply dialog.Reply, handled bool) {
	defer m.lock(ownerID)()
	sess, ok, err := m.repo.Get(ctx, ownerID)
	if err != nil {
		m.log.Warn("session lookup failed", logx.String("owner", ownerID), logx.Err(err))
		return dialog.Reply{}, false
	}
	if !ok {
		return dialog.Reply{}, false
	}
	if m.now().Sub(sess.StartedAt) > m.timeout {
		m.drop(ctx, ownerID)
		m.publish(eventbus.SessionExpired, ownerID, sess.Flow)
		return expiredReply, true
	}

	flow := sess.Flow
	defer func() {
		if r := recover(); r != nil {
			m.onPanic(ctx, ownerID, flow, r)
			reply, handled = failedReply, true
		}
	}()
	res, stepErr := m.engine.Step(ctx, &sess, text)
	if stepErr != nil {
		m.log.Error("session step failed",
			logx.String("owner", ownerID),
			logx.String("flow", string(sess.Flow)),
			logx.String("step", string(sess.Step)),
			logx.Err(stepErr),
		)
		m.drop(ctx, ownerID)
		m.publish(eventbus.SessionFailed, ownerID, sess.Flow)
		return failedReply, true
	}
	if res.Outcome == dialog.Complete {
		m.drop(ctx, ownerID)
		m.publish(eventbus.SessionCompleted, ownerID, sess.Flow)
		return res.Reply, true
	}
	if err := m.repo.Put(ctx, sess); err != nil {
		m.log.Warn("session store failed", logx.String("owner", ownerID), logx.Err(err))
	}
	return res.Reply, true
}

// onPanic drops the session of a flow that panicked.
func (m *Manager) onPanic(ctx context.Context, ownerID string, flow dialog.FlowKind, r any) {
	m.log.Error("session panic",
		logx.String("owner", ownerID),
		logx.String("flow", string(flow)),
		logx.Any("panic", r),
		logx.Stack(string(debug.Stack())),
	)
	m.drop(ctx, ownerID)
	m.publish(eventbus.SessionFailed, ownerID, flow)
}

func (m *Manager) drop(ctx context.Context, ownerID string) {
	if err := m.repo.Delete(ctx, ownerID); err != nil {
		m.log.Warn("session delete failed", logx.String("owner", ownerID), logx.Err(err))
	}
}

// Cancel ends the owner's session, if any.
func (m *Manager) Cancel(ctx context.Context, ownerID string) dialog.Reply {
	defer m.lock(ownerID)()
	sess, ok, err := m.repo.Get(ctx, ownerID)
	if err != nil || !ok {
		return nothingReply
	}
	m.drop(ctx, ownerID)
	m.publish(eventbus.SessionCancelled, ownerID, sess.Flow)
	return cancelledReply
}

// Pending reports whether the owner has a live session of kind. An empty
// kind matches any flow.
func (m *Manager) Pending(ctx context.Context, ownerID string, kind dialog.FlowKind) bool {
	defer m.lock(ownerID)()
	sess, ok, err := m.repo.Get(ctx, ownerID)
	if err != nil || !ok {
		return false
	}
	return (kind == "" || sess.Flow == kind) && m.now().Sub(sess.StartedAt) <= m.timeout
}
