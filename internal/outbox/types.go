package outbox

import (
	"time"

	"remindbot/internal/transport"
)

// Config controls the pipeline. Zero values take defaults.
type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

// Envelope is one outbound message.
type Envelope struct {
	Target transport.ChatTarget
	Text   string
	Opt    *transport.SendOptions
	// Preserve exempts the message from automatic deletion.
	Preserve bool
	// DedupKey suppresses repeats of the same key for DedupFor.
	DedupKey string
	DedupFor time.Duration
}

// Tracker schedules deletion of ephemeral messages.
type Tracker interface {
	Track(ref transport.MessageRef)
}

// Event is the payload of outbox.* bus events.
type Event struct {
	ChatID int64  `json:"chat_id"`
	Key    string `json:"key,omitempty"`
	Error  string `json:"error,omitempty"`
}
