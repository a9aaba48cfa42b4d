// Package checkpoint persists per-item batch outcomes to a JSON sidecar so
// interrupted runs resume without duplicate work.
//
// The sidecar is the sole source of truth across runs: every recorded outcome
// rewrites the whole file atomically before the runner moves on. The format is
// read permissively (missing keys default to empty) so sidecars written by
// older revisions stay loadable, but a malformed file is a hard error; the
// caller aborts rather than risk redoing or losing prior progress.
//
// Open additionally takes an exclusive flock on a sibling .lock file for the
// run's duration, guarding against two processes accidentally working the
// same batch.
package checkpoint
