// Package vault keeps the last-known-good hub credentials on local disk so an
// operator can log in while the hub is unreachable.
//
// # Files
//
// All files live in the application data directory (default ~/.dealer_desk):
//
//	key.dat          random-salted Argon2id key, created once per installation
//	auth.dat         sealed credential record (XChaCha20-Poly1305)
//	auth.dat.backup  previous auth.dat, copied before every Save
//
// The record holds the user id, an Argon2id hash of the secret and the
// tenant list returned by the last successful online login.
//
// # Recovery
//
// Load never fails hard on a damaged file. A record that cannot be opened
// is replaced from the backup once; if that also fails the primary file is
// deleted and Load reports ErrNoCredentials.
//
// # Security
//
// Protection is at rest only. Any process running as the same OS user can
// read key.dat and open the record.
package vault
