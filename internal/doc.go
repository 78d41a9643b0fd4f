// Package internal contains helper utilities that are private to goAccounts,
// currently the random token generator used for email verification.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for every Engine operation
//   - rate: Redis-backed fixed-window throttles
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAccounts API.
//   - Be imported by any package outside the goAccounts module.
package internal
