// Package flows contains the orchestration for every Engine operation.
//
// Each Run* function accepts a typed dependency struct of function fields
// and returns results without side effects beyond those dependencies, so
// flows are unit-tested with plain closures and the Engine stays thin.
//
// # Architecture boundaries
//
// Flows coordinate the account store, hasher, signer, rate limiter, audit
// dispatcher and metrics. They own none of these; the Engine does.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAccounts (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through dependency functions.
package flows
