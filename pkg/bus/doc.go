// Package bus provides the typed event-notification channel used by all
// Warren components. Workers and the coordinator exchange immutable events
// through a Bus; two implementations share one contract:
//
//   - InProcessBus delivers synchronously to local handlers, in
//     subscription order, before Emit returns.
//   - RedisBus publishes events to per-type Redis Pub/Sub channels and
//     receives all types of the instance through a wildcard subscription,
//     queueing inbound events until the scheduling goroutine drains them.
//
// Delivery is at-most-once and best-effort. Transport errors are logged
// and swallowed; callers must never depend on guaranteed delivery.
//
// All channels are namespaced by instance name so that multiple Warren
// instances can safely coexist on a single Redis server.
package bus
