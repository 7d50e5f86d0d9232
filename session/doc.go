// Package session holds the authenticated user's credentials.
//
// A Session is the in-memory view of the current access and refresh tokens.
// The live value is kept in a Holder; every reader calls Holder.Current on
// each use so a renewal that lands mid-request is always observed.
//
// Durable persistence goes through a CredentialStore. Tokens and profile are
// written as a pair on login and cleared as a pair on logout or renewal
// failure. Two stores ship with the package:
//
//   - MemoryStore keeps the pair in process, for tests and ephemeral sessions.
//   - LevelDBStore writes both keys in one leveldb batch.
//
// Manager ties the two together for the login, logout and app-start restore
// flows. Renewal is owned by package auth, which writes through the same
// Holder and CredentialStore.
package session
