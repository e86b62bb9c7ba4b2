// Package ipc carries the control protocol between the snapseal CLI and the
// daemon: JSON-RPC over a unix domain socket, with typed request and response
// structs for every daemon operation.
package ipc
