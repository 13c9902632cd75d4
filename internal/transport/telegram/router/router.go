package router

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/dialog"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const defaultTimeout = 30 * time.Second

// Request is one inbound turn. Quick-reply taps arrive with Callback set
// and Text holding the tapped word. A tap on a button bound to a reminder
// also sets ReminderID.
type Request struct {
	ReqID     string
	Chat      kit.ChatTarget
	FromID    int64
	FromName  string
	MessageID int
	Text      string
	Command   Command
	Callback   bool
	ReminderID int64
	Log        logx.Logger
}

// OwnerID is the sender id in the form the stores use.
func (r *Request) OwnerID() string { return strconv.FormatInt(r.FromID, 10) }

// CallbackAnswerer stops the client's loading spinner on a button tap.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

type Options struct {
	// Owners restricts who may talk to the bot; empty allows everyone.
	Owners  []int64
	Timeout time.Duration
	Log     logx.Logger
}

// Router runs one dispatch loop: updates are handled one at a time, in
// arrival order.
type Router struct {
	log     logx.Logger
	answers CallbackAnswerer
	handle  HandlerFunc

	mu     sync.RWMutex
	owners map[int64]struct{}
}

func New(answers CallbackAnswerer, h HandlerFunc, opt Options) *Router {
	if opt.Timeout <= 0 {
		opt.Timeout = defaultTimeout
	}
	r := &Router{
		log:     opt.Log.Component("telegram.router"),
		answers: answers,
		handle:  Chain(h, MWPanicRecover(), MWRequestLog(), MWTimeout(opt.Timeout)),
	}
	r.SetOwners(opt.Owners)
	return r
}

// SetOwners replaces the allowlist; safe during hot reload.
func (r *Router) SetOwners(owners []int64) {
	m := make(map[int64]struct{}, len(owners))
	for _, id := range owners {
		m[id] = struct{}{}
	}
	r.mu.Lock()
	r.owners = m
	r.mu.Unlock()
}

func (r *Router) allowed(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.owners) == 0 {
		return true
	}
	_, ok := r.owners[id]
	return ok
}

// Run consumes updates until ctx ends or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	r.log.Info("dispatcher started")
	defer r.log.Info("dispatcher stopped")
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.routeMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.routeCallback(ctx, up.Callback)
		}
	}
}

func (r *Router) routeMessage(ctx context.Context, m *kit.Message) {
	if !r.allowed(m.FromID) {
		r.log.Debug("message from unlisted user ignored", logx.Int64("from_id", m.FromID))
		return
	}
	req := r.request(kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}, m.FromID, m.FromName, m.ID, m.Text)
	_ = r.handle(ctx, req)
}

func (r *Router) routeCallback(ctx context.Context, cb *kit.Callback) {
	word, ok := dialog.SaidFromCallback(cb.Data)
	var reminderID int64
	if !ok {
		word, reminderID, ok = dialog.ActionFromCallback(cb.Data)
	}
	if !ok || !r.allowed(cb.FromID) {
		r.answer(ctx, cb.ID)
		return
	}
	req := r.request(kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, cb.FromID, cb.FromName, cb.MessageID, word)
	req.Callback = true
	req.ReminderID = reminderID
	_ = r.handle(ctx, req)
	r.answer(ctx, cb.ID)
}

func (r *Router) answer(ctx context.Context, id string) {
	if r.answers == nil || id == "" {
		return
	}
	if err := r.answers.AnswerCallback(ctx, id, ""); err != nil {
		r.log.Debug("answer callback failed", logx.Err(err))
	}
}

func (r *Router) request(chat kit.ChatTarget, fromID int64, fromName string, msgID int, text string) *Request {
	rid := uuid.NewString()
	cmd := Parse(text)
	return &Request{
		ReqID:     rid,
		Chat:      chat,
		FromID:    fromID,
		FromName:  fromName,
		MessageID: msgID,
		Text:      text,
		Command:   cmd,
		Log: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int("thread_id", chat.ThreadID),
			logx.Int64("from_id", fromID),
		),
	}
}
