// Package edit implements the pending-edit transaction log used by fern
// sessions.
//
// A CommandContext records Commands issued against database objects, keeps
// undo/redo history in atomic batches, coalesces the log into one queue per
// target object, and flushes the surviving commands through a
// PersistenceProvider. Completed records leave the log as soon as they are
// persisted, so a failed save can be retried without repeating finished work.
package edit
