// Package main hosts the uilens CLI entrypoint and command graph.
//
// The Cobra-based command tree wires terminal invocations into the
// extraction pipeline: running and resuming extractions, inspecting and
// deleting checkpoints, and requesting refinement advice for a pair of
// component renderings. It centralizes configuration resolution, store
// selection, and logger setup so subcommands can focus on presentation.
//
// The checkpoint store and browser manager are constructed here and
// injected into the pipeline; nothing in the library packages reaches
// for ambient process-level state.
package main
