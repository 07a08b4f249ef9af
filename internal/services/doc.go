// Package services defines shared utilities and provider contracts consumed by
// the orchestrator, the image resolver and the export engine.
//
// Key responsibilities:
//   - Context helpers that stamp book IDs, chapter numbers, operations and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures carry a class
//     (provider, empty result, validation, not found, export, concurrency)
//     that drives retry policy, logging and HTTP status mapping.
//   - The TextGenerator, ImageGenerator, StockProvider and PlaceholderProvider
//     interfaces implemented by the provider subpackages.
package services
