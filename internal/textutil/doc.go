// Package textutil provides small text helpers shared by the orchestrator,
// exporters and CLI: filename sanitization, export file naming and excerpts.
package textutil
