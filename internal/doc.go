// Package internal documents the EventEase server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: events, users, and the moderation engine
// - storage: postgres and sqlite repositories behind one contract
// - jobs: River workers that expire stale approval requests
// - auth, audit, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
