// Package credentials provides a goToken.CredentialValidator over stored
// password hashes.
//
// [Validator] resolves identifiers through a [UserLookup] and accepts two
// hash formats:
//
//	$2a$/$2b$/$2y$   bcrypt
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2] produces the second form. [StaticUsers] is an in-memory lookup
// for tooling and tests.
//
// # What this package must NOT do
//
//   - Store plaintext secrets.
//   - Distinguish unknown identifiers from wrong secrets in its errors.
package credentials
