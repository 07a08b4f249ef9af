// Package store is the durable content store for books.
//
// A book aggregate is spread over four SQLite tables (books, outline_entries,
// chapters, images). Every write runs in a single transaction and re-derives
// the book status from its facts, so callers never set status directly.
// Child rows cascade on book deletion.
package store
