// Package cache is the client-side store of server-owned collections.
//
// A Store maps canonical keys (see Key) to the last known value of a
// collection, together with a version that every write bumps, a stale flag
// and the handle of any in-flight fetch. Writes notify per-key listeners in
// write order; a listener may write the key it is observing.
//
// Reads go through Load, which returns the cached value while it is fresh
// and otherwise fetches it through the loader registered for the key's
// collection, sharing one fetch among concurrent callers. CancelPending
// detaches a key's in-flight fetch so its result is never applied; an
// optimistic write must call it first.
//
// Invalidate marks an entry stale without clearing it. Keys that are being
// watched are refetched in the background; others are refetched on the
// next Load.
package cache
