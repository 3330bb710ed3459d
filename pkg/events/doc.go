// Package events carries subscription notifications from the engine to
// tenant-scoped consumers.
//
// The engine depends only on Sink. Publishing is fire-and-forget: delivery is
// at most once within the process and a failed publish never rolls back the
// state change that produced it.
//
// Implementations:
//
//   - Hub fans events out to in-process subscribers, either for one tenant
//     or for all tenants. Slow subscribers are dropped instead of blocking.
//   - RedisSink publishes JSON-encoded events to Redis pub/sub channels
//     (one channel per tenant) for consumers in other processes.
//   - Multi publishes to several sinks.
//   - MemorySink records events for tests.
package events
