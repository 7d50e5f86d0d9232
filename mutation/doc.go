// Package mutation runs optimistic updates against a cache.Store.
//
// Every mutation follows the same protocol, implemented once by Execute:
//
//  1. Cancel in-flight fetches of every target key.
//  2. Snapshot the target keys.
//  3. Apply the optimistic values in one store write.
//  4. Run the remote operation.
//  5. On success, apply the Commit writes (server canonical data).
//  6. On failure, restore every snapshot exactly, unless another write has
//     superseded the optimistic value since step 3.
//  7. Apply the Settle writes (loading flags) and invalidate every target
//     key so the next read reconciles with the server.
//
// The remote operation's result and error are returned unchanged.
package mutation
