package eventbus

// Event types.
const (
	ReminderDelivered = "reminder.delivered"
	ReminderFailed    = "reminder.failed"

	RenewalAuto     = "renewal.auto"
	RenewalPrompted = "renewal.prompted"

	SessionStarted   = "session.started"
	SessionCompleted = "session.completed"
	SessionExpired   = "session.expired"
	SessionCancelled = "session.cancelled"
	SessionFailed    = "session.failed"

	OutboxSent    = "outbox.sent"
	OutboxFailed  = "outbox.failed"
	OutboxDropped = "outbox.dropped"
	OutboxDeduped = "outbox.deduped"

	MessageDeleted = "message.deleted"

	TaskFinished = "task.finished"
	TaskFailed   = "task.failed"
	TaskDropped  = "task.dropped"

	ConfigReloaded = "config.reloaded"
)

// Reminder is the payload of reminder.* events.
type Reminder struct {
	ID      int64
	OwnerID string
	Series  string
}

// Renewal is the payload of renewal.* events.
type Renewal struct {
	Series  string
	OwnerID string
	Added   int
}

// Session is the payload of session.* events.
type Session struct {
	OwnerID string
	Flow    string
}
