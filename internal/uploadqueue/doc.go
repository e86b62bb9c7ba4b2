// Package uploadqueue implements the durable FIFO engine that registers
// captured assets one at a time. Queue membership is mirrored between memory
// and the record store on every change so the queue survives restarts, and a
// balance-exhaustion failure pauses the engine instead of draining into
// further rejections.
package uploadqueue
