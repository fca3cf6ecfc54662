// Package registry implements the in-memory session store for sessiond.
//
// A Registry holds the authoritative live state of every tracked session
// under one lock. All reads hand out copies; callers never observe internal
// records. Durability and transport live elsewhere (storage, server); the
// registry knows nothing about either.
package registry
