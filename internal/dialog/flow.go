// Package dialog implements the multi-step conversations: new reminder,
// medicine series, delete, clear, reschedule and renewal.
//
// Each flow is a table of named steps. A step handler validates one line of
// user input and either re-prompts, advances to another step, or completes
// the flow.
package dialog

import (
	"time"

	"remindbot/internal/datetime"
	"remindbot/internal/recurrence"
	"remindbot/internal/transport"
)

type FlowKind string

const (
	FlowReminder   FlowKind = "reminder"
	FlowMedicine   FlowKind = "medicine"
	FlowDelete     FlowKind = "delete"
	FlowClear      FlowKind = "clear"
	FlowReschedule FlowKind = "reschedule"
	FlowRenewal    FlowKind = "renewal"
)

type StepName string

const (
	StepActivity     StepName = "activity"
	StepDate         StepName = "date"
	StepTime         StepName = "time"
	StepConfirm      StepName = "confirm"
	StepMedicineName StepName = "name"
	StepFrequency    StepName = "frequency"
	StepSpecificDays StepName = "specific_days"
	StepTimes        StepName = "times"
	StepSelect       StepName = "select"
	StepChoice       StepName = "choice"
)

// Owner identifies who a session belongs to and where replies go.
type Owner struct {
	ID   string
	Name string
	Chat transport.ChatTarget
}

// Draft carries the values collected by a flow's steps. Flows only read
// the fields they wrote or were seeded with.
type Draft struct {
	// new reminder / reschedule
	Activity string
	Date     time.Time
	At       time.Time

	// medicine
	Name       string
	Frequency  recurrence.Frequency
	Days       []time.Weekday
	Times      []datetime.Clock
	IsRenewal  bool
	PrevSeries string

	// delete
	Candidates []int64

	// clear
	Count int

	// reschedule
	ReminderID int64

	// renewal
	SeriesKey  string
	SeriesName string
	Remaining  int
	LastAt     time.Time
}

// Session is one owner's in-progress flow.
type Session struct {
	Owner     Owner
	Flow      FlowKind
	Step      StepName
	Draft     Draft
	StartedAt time.Time
}

// Reply is what the bot says back. Text is Telegram HTML.
type Reply struct {
	Text string
	// Choices are offered as quick-reply buttons; tapping one is the same
	// as typing it.
	Choices []string
	// ReminderID binds the choices to one reminder: a tap acts on it
	// instead of being replayed as text.
	ReminderID int64
	// Preserve exempts the message from automatic deletion.
	Preserve bool
}

type Outcome int

const (
	Reprompt Outcome = iota
	Advance
	Complete
)

func (o Outcome) String() string {
	switch o {
	case Reprompt:
		return "reprompt"
	case Advance:
		return "advance"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Result is the outcome of one step.
type Result struct {
	Outcome Outcome
	Reply   Reply
}
