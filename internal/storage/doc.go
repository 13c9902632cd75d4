// Package storage persists reminders, recurring series, users and
// outbox dedup state.
//
// Two drivers are available: "sqlite" (modernc.org/sqlite, pure Go) and
// "memory" for tests and throwaway runs.
package storage
