// Package store provides SQLite-backed history of suite runs.
//
// Each run is one row in runs plus one row per scenario in
// scenario_results, keyed by (run_id, seq) where seq is the scenario's
// position in the run. Failure messages are stored as a JSON array;
// captured stdout and stderr are kept verbatim so a failed run can be
// inspected later without re-running the build tool.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Listing queries order by started_at DESC, id COLLATE BINARY ASC so
// output is stable when two runs share a timestamp.
package store
