// Package server implements the sessiond TCP server.
//
// A Server ties together the in-memory registry, the SQLite checkpoint
// store, a broadcast hub for connected clients, and a recurring idle
// sweeper. Each accepted connection runs a ClientConn with a reader in
// its own goroutine and a writer draining a buffered outgoing channel,
// so a slow client never blocks command handling or broadcasts.
package server
