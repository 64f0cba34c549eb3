// Package storage provides the read and write functions a goCreds store uses
// to reach its user document.
//
// [ReadFile] and [WriteFile] address the local filesystem; writes go to a
// sibling temporary file that is renamed over the target so readers never see
// a partial document. [RedisBackend] keeps the document under a Redis key
// instead, for deployments without a shared disk.
//
// A missing document is reported as an error matching [fs.ErrNotExist] in
// both cases.
package storage
