package history

// Package history persists scheduler run outcomes.
//
// It currently supports:
//   - Append-only run records (one per settled deadline run, failed ticks)
//   - Recent-run queries for status surfaces
//   - Retention-based pruning
