// Package batch groups concurrent backend calls into micro-batches.
//
// Calls that target the same backend kind and version within a short window
// are coalesced into a single wire request, which is how the model servers
// reach their rated throughput. A window seals when it reaches the kind's
// configured capacity or when its max-wait timer fires, whichever happens
// first; the seal happens exactly once regardless of how the two triggers
// race.
//
// Submitters receive a Handle and block on it until the batch completes.
// Every submitted call is guaranteed a terminal outcome.
package batch
