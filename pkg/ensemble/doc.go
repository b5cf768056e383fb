// Package ensemble turns backend outcomes into moderation decisions.
//
// The Invoker fans one request out to the three backend kinds concurrently,
// feeding batch-capable backends through the batch assembler and invoking
// the rest directly. Every call terminates: deadline expiry produces a
// Timeout outcome, never an indefinite wait.
//
// The Interpreter maps each outcome to a decision factor using backend
// specific threshold rules, and Aggregate combines the factors into the
// final verdict. Aggregate is a pure function: the same outcomes always
// produce the same decision, which is what makes audit records replayable.
package ensemble
