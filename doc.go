// Package goAccounts manages user accounts: creation, password login, email
// sets, credential changes and signed auth tokens.
//
// An [Engine] is assembled once through [Builder] and is safe for concurrent
// use. Persistence is supplied as an [AccountStore]; the store packages under
// store/ provide in-memory, PostgreSQL and GORM implementations.
//
// # Architecture boundaries
//
// goAccounts is the public surface. It exposes [Engine], [Builder], [Config],
// the account value types and the typed [Error] values. Flow orchestration,
// rate limiting and audit dispatch live under internal/ and are never
// exported.
//
// Username and email uniqueness is enforced by the store. The engine looks for
// duplicates first to return a precise error, but a concurrent writer can
// still lose at the store, in which case the store's *DuplicateKeyError is
// translated to [ErrUsernameTaken] or [ErrEmailTaken].
//
// # What this package must NOT do
//
//   - Store or log plaintext passwords or issued tokens.
//   - Keep mutable state outside the store, redis and the metrics counters.
//   - Import any sub-package that re-imports goAccounts (no import cycles).
package goAccounts
