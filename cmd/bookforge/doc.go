// Package main hosts the bookforge CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon (serve) and drives the book
// workflow directly against the content store: creating books, generating
// and editing outlines, writing chapters, resolving illustrations and
// exporting finished manuscripts. It centralizes configuration resolution and
// logger setup so subcommands can focus on output instead of wiring.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
