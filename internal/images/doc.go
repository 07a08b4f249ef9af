// Package images resolves chapter illustrations from an AI generator, a stock
// library or a deterministic placeholder, following the book's image policy,
// and stores the winner against its chapter.
package images
