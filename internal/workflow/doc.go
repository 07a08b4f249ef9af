// Package workflow drives books from metadata to finished chapters.
//
// The Manager owns the generation state machine: it asks the text provider for
// an outline, lets callers edit and approve it, then writes chapters one at a
// time in increasing order. Chapter and image work is guarded by per-unit
// leases so two callers never generate the same chapter at once, while
// different chapters and books proceed independently. Provider calls that fail
// with services.ErrProvider are retried with exponential backoff; unusable
// output and validation failures are final.
//
// Approved books are queued in the content store. A single background lane
// polls for queued books (and books left running by a crash), runs
// GenerateAllChapters for each, and publishes progress events to the Hub for
// push subscribers. Book status is never set here directly: every write goes
// through store.Update, which derives status from the stored facts.
package workflow
