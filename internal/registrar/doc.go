// Package registrar submits captured assets to the remote content registry
// and classifies registration failures so the upload queue can decide
// between failing an asset and pausing for an exhausted balance.
package registrar
