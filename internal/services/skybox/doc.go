// Package skybox adapts an asynchronous panorama-generation REST API to the
// provider.Generator capability.
//
// The flow mirrors the service's public API: create a generation, poll its
// status endpoint until complete, then download the reported file URL. The
// provider's "error" and "abort" states map to a failed job status rather
// than an error so the runner records them as item outcomes.
package skybox
