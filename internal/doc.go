// Package internal contains helpers private to goCreds, currently the
// crypto/rand temporary-password generator.
//
// Nothing here appears in the public goCreds API; callers reach it through
// goCreds.RecommendedGenerators.
package internal
