// Package session implements the reduction session manager.
//
// A Session owns every run it has loaded and the two ordered lists built
// from them: the reduction list (scattering runs, sorted by QMin) and the
// direct-beam list. It loads runs through a Loader, matches each scattering
// run to a direct beam, computes reflectivity through the transform set, and
// stitches and merges the reduction list into composite curves.
//
// OWNERSHIP:
//
// Runs live in an arena keyed by ir.RunKey. The lists, the active pointer
// and the run cache all hold keys, never *ir.Run, so replacing a run on a
// forced reload is a single arena write. Cache eviction drops only the
// source-to-key mapping; an arena entry survives as long as a list or the
// active pointer still refers to it.
//
// Lifecycle of a run:
//
//	Unloaded -> Loaded(cached) -> {Normalized | Unnormalized} -> Reduced
//	         -> {InReductionList | InDirectBeamList | Neither}
//
// ERRORS:
//
// Single-run operations return error values built with the ir constructors
// (LOAD_ERROR, REDUCTION_ERROR, ...). Batch operations never abort: they
// return one BatchResult per run. Structural violations on the lists
// (duplicate insert, incongruent cross-sections) return false and are
// logged and journaled.
//
// JOURNAL:
//
// When a Journal is attached every state change is appended as an event
// stamped by a logical Clock, never by wall-clock time. Journal failures
// are logged and do not fail the operation that caused them.
//
// Thread-safety: a Session is not safe for concurrent use. The progress
// callback is invoked synchronously on the calling goroutine.
package session
