// Package rate provides Redis-backed fixed-window counters used to throttle
// login, account creation and verification-token requests.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. Keys are "<prefix>:<scope>:<id>",
// with scopes chosen by the Engine:
//   - login : failed password attempts per selector
//   - create: account creation attempts per identifier
//   - verify: verification tokens issued per address
//
// # What this package must NOT do
//
//   - Decide which operations are throttled (the Engine does).
//   - Be imported outside the goAccounts module.
package rate
