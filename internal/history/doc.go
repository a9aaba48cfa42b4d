// Package history records per-item run outcomes in SQLite for post-hoc
// auditing.
//
// The checkpoint sidecar answers "what still needs doing"; history answers
// "what happened when". Each run gets a UUID and each processed item one row
// carrying its outcome, provider reference, artifact path, and timing. The
// status command reads it; nothing in the processing path depends on it, so a
// missing or broken history database never blocks a batch.
package history
