// Package client provides a Go client for the sessiond TCP protocol.
// It multiplexes command replies and broadcast events off one connection:
// replies are matched to calls in order, events are delivered on a
// separate channel.
package client
