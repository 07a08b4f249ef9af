// Package export renders stored books as PDF, DOCX and EPUB.
//
// Every format is produced from the same manuscript: the book's metadata plus
// each chapter's markdown parsed once into a markdown.Document. The PDF
// renderer lays pages out with gofpdf in two passes so the table of contents
// carries real page numbers; the DOCX renderer writes WordprocessingML parts
// directly; the EPUB renderer builds XHTML nodes with golang.org/x/net/html and
// packages them with go-epub.
//
// The Engine caches rendered artifacts keyed by book id, format and the
// book's updated_at, so any mutation produces a new key. Files written to the
// export directory go through fileutil.WriteFileAtomic and are never left
// half-written.
package export
