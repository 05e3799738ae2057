// Package core is the public face of the engine client.
//
// Core composes a protocol.Client with the graph model and the snapshot
// synchronizer. Every operation sends one or more engine commands and then
// updates the model in one of two ways:
//
//   - Fast path: commands whose effect is predictable (adding one vertex or
//     edge, deleting, flipping, setting data) update the model directly
//     from the response or the request.
//   - Full resync: commands that may restructure the graph (merging or
//     killing bang boxes, paste, undo and redo, applying a rewrite,
//     renaming a vertex) are followed by a graph_xml query whose snapshot
//     is merged into the model. Vertex pointers survive the merge.
//
// # Locking
//
// Each operation holds the graph's lock from the first command until the
// model has been updated, so readers never see a half-applied change. The
// channel underneath serialises commands across all graphs and goroutines.
//
// # Rewrites
//
// Every graph is either Idle or has rewrites attached. AttachRewrites moves
// a graph to RewritesAttached when the engine reports at least one
// candidate; ApplyRewrite applies one candidate by index, resyncs and
// returns to Idle; DiscardRewrites returns to Idle without touching the
// engine. Any other successful mutation also returns the graph to Idle, so
// an index can never refer to candidates computed for an older graph.
//
// FastNormalise applies the first available rewrite until the engine
// answers "No more rewrites.", which ends the loop normally.
//
// # Events
//
// Subscribe registers a callback invoked after each successful mutation or
// resync. Callbacks run on the goroutine that performed the operation,
// after the graph lock has been released.
package core
