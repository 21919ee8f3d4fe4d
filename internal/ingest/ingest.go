// Package ingest imports journal entries from files.
//
// Each supported format (Markdown, CSV/TSV, plain text) has its own
// importer that implements the Importer interface. The engine picks an
// importer by file extension, and every imported entry goes through the
// same classification as a typed entry.
//
// Dates are taken from the file where the format carries them: a
// YYYY-MM-DD file name or front matter date, dated Markdown headers, or a
// date column.
package ingest
