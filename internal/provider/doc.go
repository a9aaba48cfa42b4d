// Package provider defines the capability boundary between the batch runner
// and concrete generation backends.
//
// A backend turns a catalog item's payload into an artifact through three
// operations: Submit returns an opaque JobHandle, Poll reports job status
// until a terminal state, and Fetch downloads the result. The shipped
// adapters live under internal/services; add new backends by implementing
// Generator, the runner needs nothing else.
package provider
