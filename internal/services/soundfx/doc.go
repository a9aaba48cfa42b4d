// Package soundfx adapts a synchronous sound-effect REST API to the
// provider.Generator capability.
//
// The backend returns audio bytes straight from its generation call, so the
// adapter completes the work inside Submit and satisfies the poll/fetch
// contract from memory. Catalog duration metadata becomes the API's duration
// hint, clamped to the service's accepted window.
package soundfx
