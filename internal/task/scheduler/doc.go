// Package scheduler computes trigger times (cron, interval, once) and hands
// each trigger to the task engine. It never runs job bodies itself.
//
// The bot registers the delivery tick, the renewal check, the lifecycle
// sweep and the retention job here; message deletions use AddOnce.
package scheduler
