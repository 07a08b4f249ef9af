// Package markdown parses the constrained markdown subset produced by the text
// provider into a block tree shared by preview and every export format.
//
// Supported: ATX headings (levels beyond 4 clamp to 4), bullet items ("- ",
// "* ", "+ "), numbered items ("1. " or "1) "), paragraphs, blank lines and the
// inline emphasis forms ***bold italic***, **bold** and *italic*. Anything else
// is literal text. The tree never carries raw markup.
package markdown
