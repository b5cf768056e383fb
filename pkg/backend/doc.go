// Package backend provides HTTP clients for the moderation model backends.
//
// Aegis fans every moderation request out to three backend kinds: an image
// classifier, a safety scorer, and an OCR text extractor. Each kind can run
// several versions side by side (for staged rollouts); the routing package
// decides which version serves a given request, and this package owns the
// actual wire calls.
//
// A Client wraps one backend version with connection pooling, per-call
// deadlines, and health tracking. A Registry holds every configured client
// and is the lookup surface the rest of the engine uses.
//
// Every invocation returns an Outcome rather than a bare error: callers
// always receive a terminal result (success, failure, or timeout) so the
// ensemble layer can aggregate partial results without special-casing
// transport errors.
package backend
