// Package editor stages discardable copies of entities for editing and
// commits them against the server.
//
// Each editor owns one Buffer moving through Closed, Open and Committing.
// A staged copy is independent of the store: closing a buffer never touches
// the mirror. By default a commit reaches the store only after the server
// accepted the write; WithOptimisticApply writes the store first and keeps
// the local edit even if the server rejects it.
package editor
