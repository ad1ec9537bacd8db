// Package middleware wraps a ports.SnapshotStore to protect what the mirror
// writes at rest: redacting sensitive variable values and sealing the whole
// snapshot with AES-GCM.
package middleware
