// Package catalog parses batch specification documents into ordered work
// items.
//
// A catalog is a markdown document with section headers, optional
// category headers, and entry blocks carrying an identifier, a display name,
// optional key-value metadata lines, and a fenced prompt payload. The parser
// is line-oriented and single-pass: label markers update the current grouping
// context, entry headers open a pending entry, and the first fenced block
// after an entry completes it. Document order is preserved.
//
// The line grammar lives in Patterns so catalog flavors (different ID schemes,
// extra metadata keys) stay configuration instead of parser forks.
package catalog
