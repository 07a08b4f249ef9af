// Package language normalizes book language tags and supplies the localized
// labels printed in exported books.
//
// Tags are parsed as BCP-47 with golang.org/x/text/language; labels are
// matched against the small set of translated label tables with English as
// the fallback.
package language
