// Package persist writes pages and resources to the local filesystem.
//
// Resource bodies are streamed into a temporary file next to their target
// and renamed into place once complete, so an interrupted or failed
// download never leaves a partial file under the final name.
package persist
