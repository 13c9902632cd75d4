// Package outbox is the single path for every outbound chat message.
//
// Replies to user input go through Enqueue: a per-chat ordered queue
// served by a small worker pool with a shared rate limit and retry.
// Reminder deliveries and renewal prompts use Send, which blocks until the
// platform accepted the message so the caller can record the result.
//
// Both paths honour envelope dedup keys (persisted in the store, so a
// restart does not repeat a suppressed message) and hand non-preserved
// messages to the lifecycle tracker for automatic deletion.
package outbox
