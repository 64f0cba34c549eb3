// Package goCreds manages the administrative users of an application: a
// durable, file-backed store of user records plus the credential operations
// around them (password hashing and verification, temporary passwords, TOTP
// enrollment, activation and first-login state).
//
// A [Store] is built from a [Config]. Every operation reloads the user file
// first and every mutation rewrites it before returning, so edits made by hand
// or by another process are picked up on the next call. Operations on one
// Store are serialized; separate Stores sharing a file are last-write-wins.
//
// Collaborators are injected through [Options]: file read/write (local disk or
// [storage.RedisBackend]), hash/compare (bcrypt by default), identifier
// generation, TOTP secret, URI, artifact and code verification, temporary
// passwords, a zap logger and an [AuditSink]. Hash, compare, file I/O and
// identifiers have defaults; the TOTP and temporary-password collaborators do
// not and fail with [ErrConfigurationMissing] until configured, for example
// with [RecommendedGenerators].
//
// # File format
//
// The file holds {"users": [...]}; a bare array is also accepted on read.
// Legacy attribute names passwordHash and active are read as password and
// isActive. Unknown attributes are preserved verbatim. A missing, unreadable
// or malformed file reads as an empty store.
//
// # Secrets
//
// Only [Store.GetByID] returns a record with its password hash. Temporary
// passwords and enrollment URIs are returned once from [Store.Create] and
// never stored. Nothing in this package logs or audits a password, hash or
// TOTP secret.
package goCreds
