// Package asset defines the captured-screenshot data model, its lifecycle
// statuses, and the canonical signed-metadata document sent to the
// registration service.
package asset
