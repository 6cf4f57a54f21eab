// Package cache is the advisory, TTL-bounded state cache.
//
// It holds precomputed game projections, short-lived invitation tokens
// for private game codes, the online-user hash, and a low-cardinality
// public-game counter. Nothing in it is authoritative: every entry is
// reconstructible from the durable game store, and every cache failure
// is logged and degraded to a miss so gameplay never depends on the
// cache being up.
//
// The Service wraps a small KV interface with two implementations:
// RedisKV (go-redis) for production and MemoryKV for tests and
// single-process runs without Redis.
package cache
