// Package scheduler provides tickd's in-process task scheduler.
//
// # Overview
//
// The scheduler drives two classes of recurring work from one dispatch loop
// that fires once per wall-clock second:
//
//   - Ticking items run on every tick. They carry no timestamp; a failing
//     ticking item is simply run again next tick.
//   - Deadline items run at or after a specific epoch-second timestamp. They
//     live in a queue sorted by (next run, id) and are retried with capped
//     exponential backoff on failure.
//
// Repeating deadline items recompute their next run after every completion so
// repeats land on calendar-aligned boundaries of the interval (a 24h interval
// lands on local midnight) instead of drifting from the first run. A cron-spec
// variant computes the next run from a cron expression instead.
//
// Items are registered under a stable id. Re-registering an id replaces the
// pending item (upsert); an in-flight run cannot be aborted.
//
// # Tick loop
//
// Each tick pops the due prefix of the deadline queue, runs all ticking items
// concurrently (joined at the end of the tick), runs the due deadline items
// strictly sequentially in queue order, re-inserts survivors, and rearms the
// timer at the next second boundary. The loop recovers its own panics; a
// defect in the pipeline never kills the timer.
//
// # Lifecycle
//
// The Service can be started/stopped at runtime (e.g. via config hot reload).
// Registering items while stopped is supported: they are dispatched once the
// loop runs.
package scheduler
