// Package services defines shared error utilities consumed by the batch
// runner and the provider adapters.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that tag failures at the
//     component boundary where they occur (parse, checkpoint, submit, poll,
//     fetch, write).
//   - Classification helpers the runner uses to decide whether a failure
//     aborts the run or only fails the current item, and to condense item
//     errors into persisted failure reasons.
//
// Use these helpers when wiring new provider adapters so error handling stays
// uniform across the pipeline.
package services
