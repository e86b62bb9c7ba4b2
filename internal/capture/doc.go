// Package capture produces draft assets from screen captures. The
// orchestrator coordinates the snapshot, region selection, watermark, and
// location collaborators; the default collaborators shell out to external
// tools so the pipeline stays testable with fakes.
package capture
