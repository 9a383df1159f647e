// Package markdown parses repository documents into the metadata and body
// used by the importer. Parsing is best-effort: broken front-matter never
// fails a document, it only drops the metadata.
package markdown
