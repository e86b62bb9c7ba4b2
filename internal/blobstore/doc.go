// Package blobstore persists full asset records, including image payloads,
// in a dedicated SQLite database. Small durable state lives in kvstore; the
// split keeps frequently-read records cheap while large payloads stay here.
package blobstore
