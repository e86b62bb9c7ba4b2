// Package daemon wires the stores, upload queue, capture pipeline, inbox
// watcher, and HTTP API into a single-instance background service.
package daemon
