// Package routing selects which backend version serves each request.
//
// Traffic split is governed by a rollout policy: per backend kind, an
// ordered list of versions with integer percentage weights summing to 100.
// Policies are immutable snapshots published through an atomic pointer, so
// in-flight selections always observe one coherent policy and promotion or
// rollback is a single pointer swap with no locking on the request path.
//
// Version draws are deterministic: the request ID is hashed (FNV-1a) into
// the [0,100) weight space, so the same request ID always lands on the same
// version under the same policy. Optional sticky routing pins a client key
// to its first-drawn version for the lifetime of the policy snapshot.
package routing
