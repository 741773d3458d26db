// Package password hashes account passwords with argon2id and one-time email
// verification codes with bcrypt.
//
// # Output format
//
// Password hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the caller
// can rehash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve hashes; callers supply plaintext and receive hashes.
//   - Import any other connectauth package.
//   - Log plaintext passwords or codes.
package password
