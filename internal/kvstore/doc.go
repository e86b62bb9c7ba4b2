// Package kvstore persists small durable records: credentials, the user
// settings document, and upload queue membership. It intentionally never
// stores image payloads; those belong to the blob store.
package kvstore
