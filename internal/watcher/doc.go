// Package watcher polls aria2 for download state and turns completions,
// terminal failures, and disappearances into ledger events.
//
// The ledger's persisted seen-set makes emission exactly-once across
// daemon restarts; the poll loop itself keeps only soft state and can be
// restarted at any time. Events reach the consumer synchronously on the
// poll goroutine, outside any watcher lock.
package watcher
