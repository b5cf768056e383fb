// Package server assembles the HTTP surface of the moderation service: the
// public moderation endpoints, health and readiness probes, the metrics
// endpoint, and the routing administration API, wrapped in the shared
// middleware chain.
package server
