// Package catalog holds the capability and application records that the
// recommendation pipeline searches over.
//
// Records arrive as one JSON array per source and are discriminated by field
// presence: a record with "category" is a capability, a record with
// "technologies" is an application. Anything else is rejected at load time.
// The combined sequence keeps source order; its positions are the row
// identities of the vector index built from it.
package catalog
