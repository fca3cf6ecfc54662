// Package api defines the wire protocol types for the sessiond session
// coordination service.
//
// The protocol is newline-delimited UTF-8 JSON. Client documents carry a
// "command" discriminator; server documents carry a "type" discriminator and
// are used both for command replies (sent only to the requester) and for
// broadcast events (pushed to every connected client).
//
// # Related Packages
//
//   - github.com/signadot/sessiond/server - TCP session server
//   - github.com/signadot/sessiond/registry - in-memory session store
//   - github.com/signadot/sessiond/storage - durable checkpoint store
package api
