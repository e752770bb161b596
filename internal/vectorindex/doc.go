// Package vectorindex is the nearest-neighbor index over catalog entries.
//
// Row i of the index always holds the embedding of entries[i]; the mapping is
// fixed at build time and persisted with the vectors. Persisted form is three
// files in one directory:
//
//	manifest.json   model id, dimension, row count, backend, creation time
//	index.bin       row-major little-endian float32 vectors
//	metadata.json   JSON array of catalog records in row order
//
// Search uses squared L2 distance on the flat backend. The chromem backend
// ranks by cosine similarity through chromem-go and reports 1-similarity as
// the distance.
package vectorindex
