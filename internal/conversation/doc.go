// Package conversation owns the live state of every chat thread the bot is
// engaged in.
//
// A Session holds one thread's ordered turn history and its execution-context
// token. The Store maps conversation keys to sessions, creating them on first
// access, expiring them after a TTL of inactivity, and serializing all work
// on one key behind a per-entry mutex so concurrent messages for the same
// thread cannot interleave their exchanges. Sessions live only in memory: an
// expired or restarted conversation simply starts fresh.
package conversation
