// Package password implements one-way credential hashing and verification.
//
// # Output formats
//
// bcrypt digests use the standard modular crypt form ($2a$/$2b$/$2y$).
// argon2id digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] produces digests with the configured algorithm and verifies digests
// of either algorithm. [Hasher.NeedsUpgrade] reports digests that should be
// replaced on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Which inputs count as
// missing or unchanged is decided by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials; callers supply plaintext and receive digests.
//   - Import any other goAccounts package.
//   - Log plaintext passwords or digests.
package password
