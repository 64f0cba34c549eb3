// Package password hashes and verifies user passwords.
//
// [BcryptHash] and [BcryptCompare] are the defaults a store uses: bcrypt with
// a caller-supplied cost factor. [Argon2] is an alternative producing PHC
// strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Both reject an empty plaintext and report a mismatch as (false, nil).
// This package never stores, logs or returns plaintext.
package password
